package cli

import (
	"github.com/spf13/cobra"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		browser bool
		pageURL string
	)

	cmd := &cobra.Command{
		Use:   "extract <url|file>",
		Short: "Print the product identity found on a page as JSON",
		Long: `Extract runs only the page extractor and prints brand, name, URL and
specifications without contacting the backend.

Example:
  ecoshop extract https://www.example.com/p/123
  ecoshop extract saved.html --url https://www.example.com/p/123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.loadProduct(cmd.Context(), args[0], pageURL, browser)
			if err != nil {
				return err
			}
			if !info.Dispatchable() {
				a.logger.Warn("No brand or product name found")
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}

	cmd.Flags().BoolVar(&browser, "browser", false, "render the page in a headless browser before extracting")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL to record when reading a saved file")

	return cmd
}
