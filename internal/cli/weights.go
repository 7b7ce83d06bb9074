package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ecoshop/ecoshop/internal/domain"
)

func newWeightsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show or change the category weights",
		Long: `Each category weight runs from 1 (least important) to 5 (most important).
The composite score is the weighted average of the categories that have data.`,
	}

	cmd.AddCommand(newWeightsShowCmd(a), newWeightsSetCmd(a))
	return cmd
}

func newWeightsShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSettings()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), store.Weights())
			}
			return printWeights(cmd.OutOrStdout(), store.Weights(), store.Path())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the weights as JSON")
	return cmd
}

func newWeightsSetCmd(a *app) *cobra.Command {
	var production, circularity, material int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save new weights",
		Long: `Set saves all three weights together. Weights not given keep their current
value. Nothing is saved if any weight is outside 1..5.

Example:
  ecoshop weights set --production 5 --circularity 3 --material 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSettings()
			if err != nil {
				return err
			}

			w := store.Weights()
			flags := cmd.Flags()
			if flags.Changed("production") {
				w.ProductionAndBrand = production
			}
			if flags.Changed("circularity") {
				w.CircularityAndEndOfLife = circularity
			}
			if flags.Changed("material") {
				w.MaterialComposition = material
			}

			if err := store.SaveWeights(w); err != nil {
				return err
			}
			a.logger.WithField("path", store.Path()).Info("Weights saved")
			return printWeights(cmd.OutOrStdout(), store.Weights(), store.Path())
		},
	}

	cmd.Flags().IntVar(&production, "production", domain.DefaultWeight, "production & brand weight (1-5)")
	cmd.Flags().IntVar(&circularity, "circularity", domain.DefaultWeight, "circularity & end of life weight (1-5)")
	cmd.Flags().IntVar(&material, "material", domain.DefaultWeight, "material composition weight (1-5)")
	return cmd
}

func printWeights(w io.Writer, weights domain.UserWeights, path string) error {
	for _, c := range domain.Categories {
		if _, err := fmt.Fprintf(w, "%-26s %d\n", c.Label(), weights.For(c)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "(%s)\n", path)
	return err
}
