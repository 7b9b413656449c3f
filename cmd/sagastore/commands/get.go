package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/sagastore/internal/inspect"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/dyluth/sagastore/internal/sample"
	"github.com/dyluth/sagastore/internal/watch"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGetCmd(root *rootOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "get CORRELATION_ID",
		Short: "Show a saga instance",
		Long: `Show the stored state of a saga instance as pretty-printed JSON.

Examples:
  sagastore get 550e8400-e29b-41d4-a716-446655440000

  # Wait up to 5s for the saga to be created
  sagastore get 550e8400-e29b-41d4-a716-446655440000 --wait 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.ping(cmd.Context()); err != nil {
				return err
			}

			id := args[0]
			if wait > 0 {
				parsed, err := uuid.Parse(id)
				if err != nil {
					return printer.Error("invalid correlation ID", fmt.Sprintf("'%s' is not a valid UUID.", id), nil)
				}
				if _, err := watch.PollForInstance[*sample.SimpleSaga](cmd.Context(), rt.repo, parsed, wait); err != nil {
					return printer.Error(fmt.Sprintf("saga '%s' not found", id), err.Error(), nil)
				}
			}

			err = inspect.GetInstance[*sample.SimpleSaga](cmd.Context(), rt.repo, id, cmd.OutOrStdout())
			if inspect.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("saga '%s' not found", id),
					"No saga instance is stored under this correlation ID.",
					[]string{
						fmt.Sprintf("Initiate it:\n  sagastore send initiate %s", id),
						"The saga may already have completed",
					},
				)
			}
			if err != nil {
				return printer.Error("failed to get saga", err.Error(), nil)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the saga to exist")
	return cmd
}
