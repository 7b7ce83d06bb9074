package page

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

// Page is a live document the watcher can inspect
type Page interface {
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Mutations(ctx context.Context) (int64, error)
}

// Extractor turns a serialized document into product identity
type Extractor interface {
	ExtractHTML(r io.Reader, pageURL string) domain.ProductInfo
}

// Dispatcher receives successful extractions and URL changes for a tab
type Dispatcher interface {
	Navigate(tabID int, url string) bool
	OnExtraction(ctx context.Context, tabID int, info domain.ProductInfo) (*domain.ScoreResult, error)
}

// ResultFunc is called with the outcome of each dispatch
type ResultFunc func(url string, result *domain.ScoreResult, err error)

// WatcherConfig holds the re-invocation timings
type WatcherConfig struct {
	InitialDelay     time.Duration
	RetryDelay       time.Duration
	URLPollInterval  time.Duration
	MutationInterval time.Duration
}

// DefaultWatcherConfig returns the standard timings
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		InitialDelay:     1500 * time.Millisecond,
		RetryDelay:       4 * time.Second,
		URLPollInterval:  time.Second,
		MutationInterval: 250 * time.Millisecond,
	}
}

// scheduled attempt phases for the current URL
const (
	phaseInitial = iota
	phaseRetry
	phaseIdle
)

// Watcher re-runs extraction on a live page until the current URL is dispatched.
// A URL change resets it.
type Watcher struct {
	page       Page
	extractor  Extractor
	dispatcher Dispatcher
	tabID      int
	cfg        WatcherConfig
	onResult   ResultFunc
	logger     logrus.FieldLogger

	url        string
	dispatched bool
	phase      int
	mutations  int64

	wg sync.WaitGroup
}

// NewWatcher creates a watcher for one tab. onResult may be nil.
func NewWatcher(p Page, ex Extractor, d Dispatcher, tabID int, cfg WatcherConfig, onResult ResultFunc, logger logrus.FieldLogger) *Watcher {
	def := DefaultWatcherConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.URLPollInterval <= 0 {
		cfg.URLPollInterval = def.URLPollInterval
	}
	if cfg.MutationInterval <= 0 {
		cfg.MutationInterval = def.MutationInterval
	}
	if onResult == nil {
		onResult = func(string, *domain.ScoreResult, error) {}
	}

	return &Watcher{
		page:       p,
		extractor:  ex,
		dispatcher: d,
		tabID:      tabID,
		cfg:        cfg,
		onResult:   onResult,
		logger:     logging.Component(logger, "watcher").WithField("tab", tabID),
	}
}

// Run watches the page until ctx is done, then waits for in-flight dispatches
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()

	href, err := w.page.Location(ctx)
	if err != nil {
		return err
	}
	w.reset(ctx, href)

	attempt := time.NewTimer(w.cfg.InitialDelay)
	defer attempt.Stop()
	urlTicker := time.NewTicker(w.cfg.URLPollInterval)
	defer urlTicker.Stop()
	mutationTicker := time.NewTicker(w.cfg.MutationInterval)
	defer mutationTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-attempt.C:
			found := w.attempt(ctx, "scheduled")
			if !found && w.phase == phaseInitial {
				w.phase = phaseRetry
				attempt.Reset(w.cfg.RetryDelay)
			} else {
				w.phase = phaseIdle
			}

		case <-urlTicker.C:
			href, err := w.page.Location(ctx)
			if err != nil {
				w.logger.WithError(err).Debug("Location poll failed")
				continue
			}
			if href != w.url {
				w.logger.WithFields(logrus.Fields{"from": w.url, "to": href}).Info("Page URL changed")
				w.reset(ctx, href)
				attempt.Reset(w.cfg.InitialDelay)
			}

		case <-mutationTicker.C:
			if w.dispatched {
				continue
			}
			count, err := w.page.Mutations(ctx)
			if err != nil {
				w.logger.WithError(err).Debug("Mutation poll failed")
				continue
			}
			switch {
			case w.mutations < 0 || count < w.mutations:
				// unknown baseline, or a fresh document restarted the counter
				w.mutations = count
			case count > w.mutations:
				w.mutations = count
				w.attempt(ctx, "mutation")
			}
		}
	}
}

// reset starts over for a new URL and tells the dispatcher about it.
// The page's current mutation count becomes the baseline: an in-page navigation
// keeps the counter, and mutations already counted belong to the old URL.
func (w *Watcher) reset(ctx context.Context, href string) {
	w.url = href
	w.dispatched = false
	w.phase = phaseInitial
	w.mutations = -1
	if count, err := w.page.Mutations(ctx); err == nil {
		w.mutations = count
	}
	w.dispatcher.Navigate(w.tabID, href)
}

// attempt extracts once and dispatches in the background on success.
// It reports whether anything dispatchable was found.
func (w *Watcher) attempt(ctx context.Context, trigger string) bool {
	if w.dispatched {
		return true
	}

	html, err := w.page.HTML(ctx)
	if err != nil {
		w.logger.WithError(err).Debug("Document read failed")
		return false
	}

	info := w.extractor.ExtractHTML(strings.NewReader(html), w.url)
	if !info.Dispatchable() {
		w.logger.WithField("trigger", trigger).Debug("No product identity found")
		return false
	}

	w.dispatched = true
	w.logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"brand":   info.Brand,
		"name":    info.Name,
	}).Info("Product found, dispatching")

	url := w.url
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		result, err := w.dispatcher.OnExtraction(ctx, w.tabID, info)
		w.onResult(url, result, err)
	}()
	return true
}
