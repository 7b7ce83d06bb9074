// Package coordinator deduplicates extraction results per tab, consults the
// brand cache, dispatches to the gateway and applies results to the badge.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/gateway"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/monitoring"
	"github.com/ecoshop/ecoshop/internal/scoring"
)

// ErrAlreadyDispatched is returned when an extraction arrives after the page was already dispatched
var ErrAlreadyDispatched = errors.New("already dispatched for this page")

// Gateway is the subset of the gateway client the coordinator needs
type Gateway interface {
	Submit(ctx context.Context, info domain.ProductInfo) (*gateway.Outcome, error)
	AwaitTask(ctx context.Context, taskID string) (*domain.ProductPayload, error)
}

// BadgeUpdater receives the composite score for a tab; nil means no data
type BadgeUpdater interface {
	UpdateBadge(tabID int, score *int)
}

// Notifier shows a transient message to the user
type Notifier interface {
	Notify(tabID int, message string)
}

// WeightsSource returns the user's current weights
type WeightsSource interface {
	Weights() domain.UserWeights
}

// Config holds coordinator settings
type Config struct {
	TabCacheTTL time.Duration
}

// tabState is the dispatch gate and request token for one tab
type tabState struct {
	url        string
	dispatched bool
	seq        uint64
}

// requestToken tags an async chain with the tab state it was started for
type requestToken struct {
	tabID int
	url   string
	seq   uint64
}

// Coordinator owns the gate, the brand cache and the per-tab cache
type Coordinator struct {
	gateway  Gateway
	badge    BadgeUpdater
	notifier Notifier
	weights  WeightsSource
	logger   logrus.FieldLogger
	metrics  *monitoring.ClientMetrics

	mu   sync.Mutex
	tabs map[int]*tabState

	brandCache *cache.Cache
	tabCache   *cache.Cache
}

// New creates a coordinator. badge, notifier and weights may be nil.
func New(gw Gateway, badge BadgeUpdater, notifier Notifier, weights WeightsSource, cfg Config, logger logrus.FieldLogger) *Coordinator {
	ttl := cfg.TabCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if badge == nil {
		badge = noopBadge{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Coordinator{
		gateway:    gw,
		badge:      badge,
		notifier:   notifier,
		weights:    weights,
		logger:     logging.Component(logger, "coordinator"),
		tabs:       make(map[int]*tabState),
		brandCache: cache.New(cache.NoExpiration, 0),
		tabCache:   cache.New(ttl, 2*ttl),
	}
}

// SetMetrics enables client metrics
func (c *Coordinator) SetMetrics(m *monitoring.ClientMetrics) {
	c.metrics = m
}

// Navigate records the tab's current URL. A changed URL resets the dispatch gate
// and invalidates every request started for the previous URL.
func (c *Coordinator) Navigate(tabID int, url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.navigateLocked(tabID, c.tabLocked(tabID), url)
}

// OnExtraction dispatches a successful extraction at most once per tab and URL.
// Later extractions for the same URL return ErrAlreadyDispatched without any network call.
func (c *Coordinator) OnExtraction(ctx context.Context, tabID int, info domain.ProductInfo) (*domain.ScoreResult, error) {
	if !info.Dispatchable() {
		c.metrics.IncDispatch("empty")
		return nil, domain.ErrExtractionEmpty
	}

	c.mu.Lock()
	st := c.tabLocked(tabID)
	if info.URL != "" {
		c.navigateLocked(tabID, st, info.URL)
	}
	if st.dispatched {
		c.mu.Unlock()
		c.metrics.IncDispatch("dropped")
		c.logger.WithFields(logrus.Fields{"tab": tabID, "url": st.url}).Debug("Extraction dropped, page already dispatched")
		return nil, ErrAlreadyDispatched
	}
	st.dispatched = true
	tok := requestToken{tabID: tabID, url: st.url, seq: st.seq}
	c.mu.Unlock()

	c.metrics.IncDispatch("dispatched")
	return c.check(ctx, tok, info)
}

// CheckSustainability resolves a score for the product without consulting the dispatch gate.
// Failures are returned as a ScoreResult whose Err is set; the error return is reserved for
// results that were never applied (empty extraction or a stale request).
func (c *Coordinator) CheckSustainability(ctx context.Context, tabID int, info domain.ProductInfo) (*domain.ScoreResult, error) {
	if !info.Dispatchable() {
		return nil, domain.ErrExtractionEmpty
	}

	c.mu.Lock()
	st := c.tabLocked(tabID)
	if info.URL != "" {
		c.navigateLocked(tabID, st, info.URL)
	}
	tok := requestToken{tabID: tabID, url: st.url, seq: st.seq}
	c.mu.Unlock()

	return c.check(ctx, tok, info)
}

func (c *Coordinator) check(ctx context.Context, tok requestToken, info domain.ProductInfo) (*domain.ScoreResult, error) {
	log := c.logger.WithFields(logrus.Fields{"tab": tok.tabID, "brand": info.Brand})
	key := domain.NormalizeBrand(info.Brand)

	if key != "" {
		if v, ok := c.brandCache.Get(key); ok {
			c.metrics.IncBrandCache(true)
			log.Debug("Brand cache hit")
			result := scoring.Reweight(v.(*domain.ScoreResult), c.currentWeights())
			result.URL = firstNonEmpty(info.URL, result.URL)
			return c.apply(tok, result)
		}
		c.metrics.IncBrandCache(false)
	}

	outcome, err := c.gateway.Submit(ctx, info)
	if err != nil {
		return c.fail(tok, info, err)
	}

	payload := outcome.Payload
	if outcome.Kind == gateway.OutcomeProcessing {
		log.WithField("task_id", outcome.TaskID).Info("Analysis pending, waiting for task")
		payload, err = c.gateway.AwaitTask(ctx, outcome.TaskID)
		if err != nil {
			return c.fail(tok, info, err)
		}
	}

	base, err := resultFromPayload(payload, info)
	if err != nil {
		return c.fail(tok, info, err)
	}
	c.remember(key, base)
	c.metrics.IncResolution(outcome.Kind.String())

	return c.apply(tok, scoring.Reweight(base, c.currentWeights()))
}

// remember stores the unweighted result; the first result for a brand wins
func (c *Coordinator) remember(key string, base *domain.ScoreResult) {
	if key == "" {
		key = domain.NormalizeBrand(base.Brand)
	}
	if key == "" {
		return
	}
	_ = c.brandCache.Add(key, base.Clone(), cache.NoExpiration)
}

// apply publishes a successful result if the request is still current for its tab
func (c *Coordinator) apply(tok requestToken, result *domain.ScoreResult) (*domain.ScoreResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(tok) {
		c.metrics.IncStale()
		c.logger.WithFields(logrus.Fields{"tab": tok.tabID, "url": tok.url}).Info("Discarding result for a page the tab has left")
		return nil, fmt.Errorf("%w: tab %d", domain.ErrStaleResult, tok.tabID)
	}

	c.tabCache.Set(tabKey(tok.tabID), result.Clone(), cache.DefaultExpiration)
	c.badge.UpdateBadge(tok.tabID, copyScore(result.CompositeScore))
	return result, nil
}

// fail turns err into the user-facing error result. The badge is left untouched.
func (c *Coordinator) fail(tok requestToken, info domain.ProductInfo, err error) (*domain.ScoreResult, error) {
	result := domain.ErrorResult(info.Brand, err)
	if errors.Is(err, domain.ErrTimeout) {
		// the task may still finish server side
		result.Certainty = domain.CertaintyPending
	}
	result.ProductName = info.Name
	result.URL = info.URL
	c.metrics.IncResolution(errorKind(err))

	c.mu.Lock()
	current := c.currentLocked(tok)
	c.mu.Unlock()
	if !current {
		c.metrics.IncStale()
		return nil, fmt.Errorf("%w: tab %d: %v", domain.ErrStaleResult, tok.tabID, err)
	}

	c.logger.WithError(err).WithFields(logrus.Fields{"tab": tok.tabID, "brand": info.Brand}).Warn("Sustainability check failed")
	c.notifier.Notify(tok.tabID, result.Message)
	return result, nil
}

// Recompute re-applies weights to every cached tab result and refreshes the badges.
// No gateway call is made.
func (c *Coordinator) Recompute(weights domain.UserWeights) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := 0
	for key, item := range c.tabCache.Items() {
		result, ok := item.Object.(*domain.ScoreResult)
		if !ok || result.Failed() {
			continue
		}
		tabID, err := strconv.Atoi(key)
		if err != nil {
			continue
		}

		ttl := cache.NoExpiration
		if item.Expiration > 0 {
			ttl = time.Until(time.Unix(0, item.Expiration))
			if ttl <= 0 {
				continue
			}
		}

		reweighted := scoring.Reweight(result, weights)
		c.tabCache.Set(key, reweighted, ttl)
		c.badge.UpdateBadge(tabID, copyScore(reweighted.CompositeScore))
		updated++
	}

	c.logger.WithField("tabs", updated).Debug("Recomputed scores for new weights")
	return updated
}

// TabResult returns the last applied result for a tab
func (c *Coordinator) TabResult(tabID int) (*domain.ScoreResult, bool) {
	v, ok := c.tabCache.Get(tabKey(tabID))
	if !ok {
		return nil, false
	}
	return v.(*domain.ScoreResult).Clone(), true
}

// RestoreBadge re-sends the cached score for a tab after a transient UI state
func (c *Coordinator) RestoreBadge(tabID int) bool {
	result, ok := c.TabResult(tabID)
	if !ok {
		return false
	}
	c.badge.UpdateBadge(tabID, result.CompositeScore)
	return true
}

// CloseTab forgets everything about a tab
func (c *Coordinator) CloseTab(tabID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tabs, tabID)
	c.tabCache.Delete(tabKey(tabID))
}

func (c *Coordinator) tabLocked(tabID int) *tabState {
	st, ok := c.tabs[tabID]
	if !ok {
		st = &tabState{}
		c.tabs[tabID] = st
	}
	return st
}

func (c *Coordinator) navigateLocked(tabID int, st *tabState, url string) bool {
	if st.url == url {
		return false
	}
	st.url = url
	st.dispatched = false
	st.seq++
	c.tabCache.Delete(tabKey(tabID))
	return true
}

func (c *Coordinator) currentLocked(tok requestToken) bool {
	st, ok := c.tabs[tok.tabID]
	return ok && st.seq == tok.seq && st.url == tok.url
}

func (c *Coordinator) currentWeights() domain.UserWeights {
	if c.weights == nil {
		return domain.DefaultWeights()
	}
	return c.weights.Weights()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, domain.ErrAnalysisFailed):
		return "analysis_failed"
	}
	return "other"
}

func tabKey(tabID int) string {
	return strconv.Itoa(tabID)
}

func copyScore(score *int) *int {
	if score == nil {
		return nil
	}
	v := *score
	return &v
}

type noopBadge struct{}

func (noopBadge) UpdateBadge(int, *int) {}

type noopNotifier struct{}

func (noopNotifier) Notify(int, string) {}
