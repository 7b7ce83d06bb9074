package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := a.gatewayClient().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend %s is not healthy: %w", a.cfg.BackendURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%s at %s\n", health.Service, health.Status, health.Version, a.cfg.BackendURL)
			return nil
		},
	}
}
