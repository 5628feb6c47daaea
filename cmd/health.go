package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentra-sec/sentra/internal/observability"
	"github.com/sentra-sec/sentra/internal/service"
)

// newHealthCmd creates the `health` command: probe every configured
// capability endpoint and report its status.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the configured capability endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			components, err := service.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			registered := components.Registry.Registered()
			if len(registered) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no capability endpoints configured")
				return nil
			}

			unhealthy := 0
			for _, capability := range registered {
				status := components.Orchestrator.CheckHealth(ctx, capability)
				if status.Healthy {
					fmt.Fprintf(cmd.OutOrStdout(), "%-22s healthy   %s\n", capability, status.Latency.Round(time.Millisecond))
					continue
				}
				unhealthy++
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s unhealthy %s (%s)\n", capability, status.Latency.Round(time.Millisecond), status.Issue)
			}

			if unhealthy > 0 {
				return fmt.Errorf("%d of %d capabilities unhealthy", unhealthy, len(registered))
			}
			return nil
		},
	}
}
