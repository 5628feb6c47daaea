package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/observability"
	"github.com/sentra-sec/sentra/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newProcessCmd creates the `process` command: run one raw event from a
// JSON file through the enrich-score-correlate-alert pipeline.
func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <event.json>",
		Short: "Score and correlate a single raw security event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading event file: %w", err)
			}
			var raw schemas.RawEvent
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("parsing event file %s: %w", args[0], err)
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

			result, err := components.Processor.Process(ctx, raw)
			if err != nil {
				return err
			}

			logger.Info("Event processed",
				zap.String("event_id", result.Event.ID),
				zap.Float64("score", result.Score.Overall),
				zap.Int("alerts", len(result.Alerts)),
			)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("rendering result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
