package page

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/logging"
)

// mutationObserverJS counts DOM mutations on every document the tab loads.
// The watcher polls the counter instead of receiving callbacks.
const mutationObserverJS = `(function () {
  window.__ecoshopMutations = 0;
  new MutationObserver(function (records) {
    window.__ecoshopMutations += records.length;
  }).observe(document, { childList: true, subtree: true, characterData: true });
})();`

// BrowserConfig holds settings for the headless browser
type BrowserConfig struct {
	Headless        bool
	UserAgent       string
	NavigateTimeout time.Duration
}

// LivePage is a single browser tab whose document can change after load
type LivePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      logrus.FieldLogger
}

// OpenBrowser starts a browser tab with the mutation counter installed
func OpenBrowser(ctx context.Context, cfg BrowserConfig, logger logrus.FieldLogger) (*LivePage, error) {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 30 * time.Second
	}
	log := logging.Component(logger, "browser")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	setup := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(mutationObserverJS).Do(ctx)
			return err
		}),
	}
	if cfg.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(cfg.UserAgent))
	}

	if err := chromedp.Run(tabCtx, setup...); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &LivePage{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     cfg.NavigateTimeout,
		logger:      log,
	}, nil
}

// run executes actions on the tab, aborting them when ctx is done
func (p *LivePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the tab
func (p *LivePage) Navigate(ctx context.Context, url string) error {
	p.logger.WithField("url", url).Info("Opening page")
	if err := p.run(ctx, p.timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Location returns the tab's current location.href
func (p *LivePage) Location(ctx context.Context) (string, error) {
	var href string
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(`window.location.href`, &href)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return href, nil
}

// HTML returns the current serialized document
func (p *LivePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// Mutations returns the number of DOM mutations seen since the document loaded
func (p *LivePage) Mutations(ctx context.Context) (int64, error) {
	var count int64
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(`window.__ecoshopMutations || 0`, &count)); err != nil {
		return 0, fmt.Errorf("read mutation count: %w", err)
	}
	return count, nil
}

// Close shuts the tab and the browser
func (p *LivePage) Close() {
	p.cancel()
	p.allocCancel()
}
