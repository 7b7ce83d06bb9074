package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ecoshop/ecoshop/internal/coordinator"
	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/monitoring"
	"github.com/ecoshop/ecoshop/internal/page"
	"github.com/ecoshop/ecoshop/internal/presentation"
)

type watchOptions struct {
	tab         int
	asJSON      bool
	metricsAddr string
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in a browser and score every product it navigates to",
		Long: `Watch opens the page in a headless browser and keeps extracting until a
product is found: once after the page settles, once more a little later, and
again whenever the document changes. Navigating to another URL starts over.

Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.tab, "tab", 1, "tab id used for the dispatch gate")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve client metrics on this address, e.g. :9091")

	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, target string, opts *watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openSettings()
	if err != nil {
		return err
	}
	coord := a.newCoordinator(store)
	defer coord.CloseTab(opts.tab)
	store.OnChange(func(w domain.UserWeights) { coord.Recompute(w) })
	if err := store.Watch(ctx); err != nil {
		a.logger.WithError(err).Warn("Weight changes from other processes will not be picked up")
	}

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		coord.SetMetrics(monitoring.NewClientMetrics(reg))
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	live, err := page.OpenBrowser(ctx, a.browserConfig(), a.logger)
	if err != nil {
		return err
	}
	defer live.Close()

	if err := live.Navigate(ctx, target); err != nil {
		return err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	onResult := func(url string, result *domain.ScoreResult, err error) {
		if err != nil {
			if errors.Is(err, domain.ErrStaleResult) {
				// the discard log line pushed the badge out of view; print the current one again
				coord.RestoreBadge(opts.tab)
				return
			}
			if errors.Is(err, coordinator.ErrAlreadyDispatched) {
				return
			}
			a.logger.WithError(err).WithField("url", url).Warn(domain.UserMessage(err))
			return
		}
		if err := writeView(out, presentation.Render(result), opts.asJSON); err != nil {
			a.logger.WithError(err).Error("Failed to print result")
		}
	}

	watcher := page.NewWatcher(live, a.extractor(), coord, opts.tab, page.WatcherConfig{
		InitialDelay:    a.cfg.InitialDelay,
		RetryDelay:      a.cfg.RetryDelay,
		URLPollInterval: a.cfg.URLPollInterval,
	}, onResult, a.logger)

	a.logger.WithField("url", target).Info("Watching page, press Ctrl+C to stop")
	return watcher.Run(ctx)
}
