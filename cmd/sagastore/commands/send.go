package commands

import (
	"fmt"
	"sync"

	"github.com/dyluth/sagastore/internal/printer"
	"github.com/dyluth/sagastore/internal/sample"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type sendOptions struct {
	name        string
	count       int
	concurrency int
	preInsert   bool
	strict      bool
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send KIND [CORRELATION_ID...]",
		Short: "Dispatch messages to sample sagas",
		Long: `Dispatch initiate, observe or complete messages to sample sagas.

Each correlation ID receives one message. Messages are dispatched
concurrently. Initiate without IDs starts --count new sagas.

Kinds:
  initiate - create the saga (or re-initiate an existing one)
  observe  - record activity on an existing saga
  complete - finish the saga and remove it from the store

Examples:
  # Start three sagas
  sagastore send initiate --count 3 --name demo

  # Rename an existing saga
  sagastore send observe 550e8400-e29b-41d4-a716-446655440000 --name renamed

  # Complete it, failing if it does not exist
  sagastore send complete 550e8400-e29b-41d4-a716-446655440000 --strict`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, root, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Saga name carried by initiate and observe messages")
	cmd.Flags().IntVar(&opts.count, "count", 1, "Number of new sagas to initiate when no IDs are given")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 8, "Maximum concurrent dispatches")
	cmd.Flags().BoolVar(&opts.preInsert, "pre-insert", false, "Insert new sagas before loading them")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail observe and complete messages for unknown sagas")

	return cmd
}

func runSend(cmd *cobra.Command, root *rootOptions, opts *sendOptions, kind string, rawIDs []string) error {
	if _, err := sample.NewMessage(kind, uuid.Nil, ""); err != nil {
		return printer.Error(
			"invalid message kind",
			err.Error(),
			[]string{"Valid kinds: initiate, observe, complete"},
		)
	}
	if opts.concurrency < 1 {
		return printer.Error("invalid concurrency", fmt.Sprintf("--concurrency must be at least 1, got %d", opts.concurrency), nil)
	}

	ids, err := correlationIDs(kind, rawIDs, opts.count)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd, root)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.ping(cmd.Context()); err != nil {
		return err
	}

	policy := sample.NewPolicy(opts.preInsert, opts.strict)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			msg, err := sample.NewMessage(kind, id, opts.name)
			if err != nil {
				return err
			}
			if err := rt.repo.Dispatch(ctx, msg, policy, sample.Consumer); err != nil {
				return err
			}

			mu.Lock()
			printer.Success("%s %s\n", kind, id)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return printer.DispatchError(err)
	}
	return nil
}

// correlationIDs parses the given IDs, or generates count new ones for
// initiate messages.
func correlationIDs(kind string, rawIDs []string, count int) ([]uuid.UUID, error) {
	if len(rawIDs) == 0 {
		if kind != sample.KindInitiate {
			return nil, printer.Error(
				"correlation ID required",
				fmt.Sprintf("'%s' messages must target existing sagas.", kind),
				[]string{fmt.Sprintf("Pass one or more IDs:\n  sagastore send %s <CORRELATION_ID>", kind)},
			)
		}
		if count < 1 {
			return nil, printer.Error("invalid count", fmt.Sprintf("--count must be at least 1, got %d", count), nil)
		}

		ids := make([]uuid.UUID, count)
		for i := range ids {
			ids[i] = uuid.New()
		}
		return ids, nil
	}

	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, printer.Error(
				"invalid correlation ID",
				fmt.Sprintf("'%s' is not a valid UUID.", raw),
				nil,
			)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
