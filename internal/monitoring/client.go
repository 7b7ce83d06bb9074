package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics counts coordinator activity in the client host
type ClientMetrics struct {
	Dispatches   *prometheus.CounterVec
	BrandCache   *prometheus.CounterVec
	Resolutions  *prometheus.CounterVec
	StaleResults prometheus.Counter
}

// NewClientMetrics registers the client metrics on reg. A nil reg uses a private registry.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &ClientMetrics{
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_client_dispatches_total",
			Help: "Extraction results by gate decision",
		}, []string{"decision"}), // dispatched, dropped, empty
		BrandCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_client_brand_cache_total",
			Help: "Brand cache lookups by result",
		}, []string{"result"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoshop_client_resolutions_total",
			Help: "Completed checks by outcome",
		}, []string{"outcome"}), // found, processing, error kind
		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoshop_client_stale_results_total",
			Help: "Results discarded because the tab moved on",
		}),
	}
}

func (m *ClientMetrics) IncDispatch(decision string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(decision).Inc()
}

func (m *ClientMetrics) IncBrandCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.BrandCache.WithLabelValues("hit").Inc()
		return
	}
	m.BrandCache.WithLabelValues("miss").Inc()
}

func (m *ClientMetrics) IncResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}
