// Package monitoring holds the Prometheus metrics for the server and the client host.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server-side Prometheus metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProductsTotal    *prometheus.CounterVec
	TasksTotal       *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	CacheTotal       *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the server metrics on reg. A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_http_requests_total",
			Help: "The total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecoshop_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ProductsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_products_submitted_total",
			Help: "Product submissions by outcome",
		}, []string{"outcome"}), // found, processing, invalid
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_analysis_tasks_total",
			Help: "Analysis tasks by terminal status",
		}, []string{"status"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecoshop_analysis_duration_seconds",
			Help:    "Time spent analysing one product",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		CacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_cache_lookups_total",
			Help: "Product cache lookups by result",
		}, []string{"result"}), // hit, miss
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}),
		gatherer: gatherer,
	}
}

// Handler exposes the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncProducts(outcome string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTask(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheTotal.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
