package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/page"
	"github.com/ecoshop/ecoshop/internal/presentation"
)

type checkOptions struct {
	browser bool
	tab     int
	pageURL string
	asJSON  bool
}

func newCheckCmd(a *app) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <url|file>",
		Short: "Score the product on a page",
		Long: `Check loads a product page once, extracts the product and prints its
sustainability score, category breakdown and better alternatives.

Example:
  ecoshop check https://shopee.sg/Bamboo-Cutting-Board-i.123.456
  ecoshop check https://www.example.com/p/123 --browser
  ecoshop check saved.html --url https://shopee.sg/Bamboo-Cutting-Board-i.123.456 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.browser, "browser", false, "render the page in a headless browser before extracting")
	cmd.Flags().IntVar(&opts.tab, "tab", 1, "tab id used for the dispatch gate")
	cmd.Flags().StringVar(&opts.pageURL, "url", "", "page URL to record when reading a saved file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")

	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, target string, opts *checkOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	info, err := a.loadProduct(ctx, target, opts.pageURL, opts.browser)
	if err != nil {
		return err
	}

	store, err := a.openSettings()
	if err != nil {
		return err
	}
	coord := a.newCoordinator(store)

	result, err := coord.OnExtraction(ctx, opts.tab, info)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionEmpty) {
			return fmt.Errorf("%s (%w)", domain.UserMessage(err), err)
		}
		return err
	}

	if err := writeView(cmd.OutOrStdout(), presentation.Render(result), opts.asJSON); err != nil {
		return err
	}
	if result.Failed() {
		return result.Err
	}
	return nil
}

// loadProduct extracts product identity from a URL or a saved HTML file.
// URLs are downloaded once, or rendered in a browser when useBrowser is set.
func (a *app) loadProduct(ctx context.Context, target, pageURL string, useBrowser bool) (domain.ProductInfo, error) {
	ex := a.extractor()

	if !looksLikeURL(target) {
		if !fileExists(target) {
			return domain.ProductInfo{}, fmt.Errorf("%s is neither a URL nor a readable file", target)
		}
		snap, err := page.LoadFile(target, pageURL)
		if err != nil {
			return domain.ProductInfo{}, err
		}
		return ex.Extract(snap.Doc, snap.URL), nil
	}

	if useBrowser {
		live, err := page.OpenBrowser(ctx, a.browserConfig(), a.logger)
		if err != nil {
			return domain.ProductInfo{}, err
		}
		defer live.Close()

		if err := live.Navigate(ctx, target); err != nil {
			return domain.ProductInfo{}, err
		}
		href, err := live.Location(ctx)
		if err != nil {
			return domain.ProductInfo{}, err
		}
		html, err := live.HTML(ctx)
		if err != nil {
			return domain.ProductInfo{}, err
		}
		return ex.ExtractHTML(strings.NewReader(html), href), nil
	}

	fetcher := page.NewFetcher(page.FetcherConfig{
		UserAgent:     a.cfg.UserAgent,
		Timeout:       a.cfg.FetchTimeout,
		RespectRobots: a.cfg.RespectRobots,
	}, a.logger)
	snap, err := fetcher.Fetch(ctx, target)
	if err != nil {
		return domain.ProductInfo{}, err
	}
	return ex.Extract(snap.Doc, snap.URL), nil
}

func (a *app) browserConfig() page.BrowserConfig {
	return page.BrowserConfig{
		Headless:        a.cfg.Headless,
		UserAgent:       a.cfg.UserAgent,
		NavigateTimeout: a.cfg.FetchTimeout,
	}
}
