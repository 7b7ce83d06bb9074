// Package gateway is the client half of the scoring service protocol:
// submitting products, polling or streaming pending tasks and brand lookups.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

const maxBodyBytes = 1 << 20

// Config holds the gateway settings
type Config struct {
	BaseURL       string
	SubmitTimeout time.Duration
	PollInterval  time.Duration
	PollAttempts  int
	// UseStream waits on the task websocket before falling back to polling
	UseStream bool
	// RequestsPerSecond limits outbound calls; zero disables the limiter
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultConfig returns the stock client settings
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:5000",
		SubmitTimeout:     8 * time.Second,
		PollInterval:      2 * time.Second,
		PollAttempts:      30,
		RequestsPerSecond: 5,
		UserAgent:         "EcoShop/1.0",
	}
}

// OutcomeKind tags a submission outcome
type OutcomeKind int

const (
	// OutcomeFound carries an immediate result
	OutcomeFound OutcomeKind = iota
	// OutcomeProcessing carries a pending task handle
	OutcomeProcessing
)

func (k OutcomeKind) String() string {
	if k == OutcomeFound {
		return "found"
	}
	return "processing"
}

// Outcome is the result of Submit: either a payload or a task id, never both
type Outcome struct {
	Kind    OutcomeKind
	Payload *domain.ProductPayload
	TaskID  string
}

// TaskStatus is the client's read-only projection of a remote task
type TaskStatus struct {
	Status string
	Data   *domain.ProductPayload
	Error  string
}

// HealthStatus is the body of the health probe
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// submitRequest is the product submission body; specifications is always an object
type submitRequest struct {
	Brand          string            `json:"brand"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Specifications map[string]string `json:"specifications"`
}

// Client talks to the scoring service over HTTP
type Client struct {
	httpClient  *http.Client
	baseURL     string
	cfg         Config
	rateLimiter *rate.Limiter
	dialer      *websocket.Dialer
	logger      logrus.FieldLogger
}

// NewClient creates a gateway client. Zero config fields take DefaultConfig values.
func NewClient(cfg Config, logger logrus.FieldLogger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = def.PollAttempts
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		cfg:         cfg,
		rateLimiter: limiter,
		dialer:      &websocket.Dialer{HandshakeTimeout: cfg.SubmitTimeout},
		logger:      logging.Component(logger, "gateway"),
	}
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.cfg
}

// Submit sends the product for analysis. The call is bounded by SubmitTimeout and
// is never retried; an expired deadline surfaces as domain.ErrTimeout.
func (c *Client) Submit(ctx context.Context, info domain.ProductInfo) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	specs := info.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	body := submitRequest{
		Brand:          info.Brand,
		Name:           info.Name,
		URL:            info.URL,
		Specifications: specs,
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/product", body)
	if err != nil {
		return nil, err
	}
	if err := statusError(status, raw); err != nil {
		return nil, err
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode submit response: %v", domain.ErrInvalidResponse, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidResponse, orDefault(resp.Error, "submission rejected"))
	}

	switch resp.Status {
	case domain.WireStatusFound:
		if resp.Data == nil {
			return nil, fmt.Errorf("%w: found without data", domain.ErrInvalidResponse)
		}
		c.logger.WithField("brand", info.Brand).Debug("Submission resolved immediately")
		return &Outcome{Kind: OutcomeFound, Payload: resp.Data}, nil
	case domain.WireStatusProcessing:
		if resp.ProductID == "" {
			return nil, fmt.Errorf("%w: processing without product_id", domain.ErrInvalidResponse)
		}
		c.logger.WithFields(logrus.Fields{"brand": info.Brand, "task_id": resp.ProductID}).Debug("Submission pending")
		return &Outcome{Kind: OutcomeProcessing, TaskID: resp.ProductID}, nil
	}

	return nil, fmt.Errorf("%w: unexpected status %q", domain.ErrInvalidResponse, resp.Status)
}

// PollStatus fetches the current status of a task once
func (c *Client) PollStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/product/"+url.PathEscape(taskID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	if err := statusError(status, raw); err != nil {
		return nil, err
	}

	var resp domain.StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", domain.ErrInvalidResponse, err)
	}

	switch resp.Status {
	case domain.WireStatusCompleted, domain.WireStatusProcessing, domain.WireStatusError:
	default:
		return nil, fmt.Errorf("%w: unexpected task status %q", domain.ErrInvalidResponse, resp.Status)
	}

	return &TaskStatus{Status: resp.Status, Data: resp.Data, Error: resp.Error}, nil
}

// AwaitTask waits for a pending task to reach a terminal state.
// With streaming enabled the websocket is tried first and polling takes over
// when the stream cannot be established or drops.
func (c *Client) AwaitTask(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
	if c.cfg.UseStream {
		payload, err := c.Stream(ctx, taskID)
		if err == nil || !errors.Is(err, domain.ErrTransport) {
			return payload, err
		}
		c.logger.WithError(err).WithField("task_id", taskID).Warn("Task stream unavailable, polling instead")
	}
	return c.Poll(ctx, taskID)
}

// Poll checks the task every PollInterval for at most PollAttempts attempts.
// Transport failures are logged and retried. The whole loop, including requests
// that stall, is bounded by one spare interval past the attempt budget;
// exhausting it yields domain.ErrTimeout.
func (c *Client) Poll(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
	log := c.logger.WithField("task_id", taskID)

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollInterval*time.Duration(c.cfg.PollAttempts+1))
	defer cancel()

	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			return nil, c.pollTimeout(log, taskID, attempt-1)
		case <-timer.C:
		}

		st, err := c.PollStatus(ctx, taskID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			return nil, err
		case parent.Err() != nil:
			return nil, parent.Err()
		case ctx.Err() != nil:
			return nil, c.pollTimeout(log, taskID, attempt)
		default:
			log.WithError(err).WithField("attempt", attempt).Warn("Status poll failed, retrying")
			timer.Reset(c.cfg.PollInterval)
			continue
		}

		switch st.Status {
		case domain.WireStatusCompleted:
			if st.Data == nil {
				return nil, fmt.Errorf("%w: completed task without data", domain.ErrInvalidResponse)
			}
			log.WithField("attempt", attempt).Debug("Task completed")
			return st.Data, nil
		case domain.WireStatusError:
			return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisFailed, orDefault(st.Error, "analysis failed"))
		}

		timer.Reset(c.cfg.PollInterval)
	}

	return nil, c.pollTimeout(log, taskID, c.cfg.PollAttempts)
}

func (c *Client) pollTimeout(log logrus.FieldLogger, taskID string, attempts int) error {
	log.WithField("attempts", attempts).Warn("Task did not resolve in time")
	return fmt.Errorf("%w: task %s not resolved after %d attempts", domain.ErrTimeout, taskID, attempts)
}

// LookupBrand queries the brand-level fallback score
func (c *Client) LookupBrand(ctx context.Context, brand string) (*domain.BrandScore, error) {
	q := url.Values{}
	q.Set("brand", brand)

	status, raw, err := c.do(ctx, http.MethodGet, "/api/score?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := statusError(status, raw); err != nil {
		return nil, err
	}

	var resp domain.ScoreResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode score response: %v", domain.ErrInvalidResponse, err)
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("%w: no score for brand %q", domain.ErrNotFound, brand)
	}
	return resp.Data, nil
}

// Health probes the service liveness endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	if err := statusError(status, raw); err != nil {
		return nil, err
	}

	var health HealthStatus
	if err := json.Unmarshal(raw, &health); err != nil {
		return nil, fmt.Errorf("%w: decode health response: %v", domain.ErrInvalidResponse, err)
	}
	return &health, nil
}

// do executes one request and returns the status code and body
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return 0, nil, classifyTransport(ctx, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, classifyTransport(ctx, err)
	}
	return resp.StatusCode, raw, nil
}

// classifyTransport separates deadline expiry from other network failures
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}

// statusError maps non-success HTTP statuses onto the client taxonomy
func statusError(status int, body []byte) error {
	switch {
	case status == http.StatusOK || status == http.StatusAccepted:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, errorText(body))
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrTransport, status, errorText(body))
	}
	return fmt.Errorf("%w: status %d: %s", domain.ErrInvalidResponse, status, errorText(body))
}

// errorText pulls the "error" field out of a JSON error body
func errorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
