package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoshop/ecoshop/internal/domain"
)

func newBrandCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "brand <name>",
		Short: "Look up the brand-level ESG score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			score, err := a.gatewayClient().LookupBrand(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("%s (%w)", domain.UserMessage(err), err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), score)
			}
			return printBrand(cmd.OutOrStdout(), score)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func printBrand(w io.Writer, score *domain.BrandScore) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: %d/100\n", score.Brand, score.Score)
	if score.LaborPractices != "" {
		fmt.Fprintf(&sb, "  Labor practices: %s\n", score.LaborPractices)
	}
	if score.WaterUsage != "" {
		fmt.Fprintf(&sb, "  Water usage:     %s\n", score.WaterUsage)
	}
	if score.WasteGenerated != "" {
		fmt.Fprintf(&sb, "  Waste:           %s\n", score.WasteGenerated)
	}
	if score.CO2e > 0 {
		fmt.Fprintf(&sb, "  CO2e:            %.1f\n", score.CO2e)
	}
	if len(score.Certifications) > 0 {
		fmt.Fprintf(&sb, "  Certifications:  %s\n", strings.Join(score.Certifications, ", "))
	}
	if len(score.Alternatives) > 0 {
		sb.WriteString("Better alternatives:\n")
		for _, alt := range score.Alternatives {
			fmt.Fprintf(&sb, "  %s (%d)\n", alt.Brand, alt.Score)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
