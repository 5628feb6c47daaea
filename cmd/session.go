package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/internal/observability"
	"github.com/sentra-sec/sentra/internal/service"
)

// newSessionCmd creates the `session` command: plan a scenario and run the
// resulting task graph to completion.
func newSessionCmd() *cobra.Command {
	var contextPairs []string

	sessionCmd := &cobra.Command{
		Use:   "session [scenario...]",
		Short: "Plan and run a collaboration session for a security scenario",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			scenario := strings.Join(args, " ")

			initial, err := parseContextPairs(contextPairs)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			components, err := service.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			session, err := components.Orchestrator.PlanSession(ctx, scenario, initial)
			if err != nil {
				return err
			}
			logger.Info("Session planned",
				zap.String("session_id", session.ID),
				zap.Int("tasks", len(session.Tasks)),
			)

			session, err = components.Orchestrator.RunSession(ctx, session)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), session.Summary)
			return nil
		},
	}

	sessionCmd.Flags().StringArrayVar(&contextPairs, "context", nil, "initial shared context entry as key=value (repeatable)")
	return sessionCmd
}

func parseContextPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --context entry %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
