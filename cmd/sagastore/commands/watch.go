package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/sagastore/internal/filter"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/dyluth/sagastore/internal/watch"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var output, eventGlob, correlationID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream saga lifecycle events",
		Long: `Stream insert, store and remove events for sample sagas as they occur.

Requires the redis backend with redis.events enabled on the processes
dispatching messages.

Output Formats:
  default - Human-readable table
  json    - Line-delimited JSON for programmatic processing

Examples:
  sagastore watch
  sagastore watch --event=removed
  sagastore watch --output=json > events.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var format watch.OutputFormat
			switch output {
			case "default":
				format = watch.OutputFormatDefault
			case "json":
				format = watch.OutputFormatJSON
			default:
				return printer.Error(
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", output),
					[]string{"Valid formats: default, json"},
				)
			}

			criteria := &filter.Criteria{TypeGlob: eventGlob}
			if err := criteria.Validate(); err != nil {
				return printer.Error("invalid event filter", fmt.Sprintf("'%s': %v", eventGlob, err), nil)
			}
			if correlationID != "" {
				id, err := uuid.Parse(correlationID)
				if err != nil {
					return printer.Error("invalid correlation ID", fmt.Sprintf("'%s' is not a valid UUID.", correlationID), nil)
				}
				criteria.CorrelationID = id
			}

			rt, err := openRuntime(cmd, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.redis == nil {
				return printer.Error(
					"watch requires the redis backend",
					fmt.Sprintf("Lifecycle events are published over Redis Pub/Sub; the configured backend is '%s'.", rt.cfg.Backend),
					[]string{"Set backend: redis in sagastore.yml"},
				)
			}
			if err := rt.ping(cmd.Context()); err != nil {
				return err
			}
			if !rt.cfg.Redis.Events {
				printer.Warning("redis.events is disabled in this configuration; only events from other processes will appear\n")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub, err := rt.redis.Subscribe(ctx)
			if err != nil {
				return printer.Error("failed to subscribe", err.Error(), nil)
			}
			defer sub.Close()

			if format == watch.OutputFormatDefault {
				printer.Step("Watching %s events in namespace '%s'\n", rt.repo.Probe().SagaType, rt.cfg.Namespace)
			}
			return watch.StreamEvents(ctx, sub, criteria, format, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format (default or json)")
	cmd.Flags().StringVar(&eventGlob, "event", "", "Only show events whose type matches this glob (inserted, stored, removed)")
	cmd.Flags().StringVar(&correlationID, "id", "", "Only show events for this correlation ID")
	return cmd
}
