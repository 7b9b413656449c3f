// Package watch streams saga lifecycle events and waits for instances to
// reach the store.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/sagastore/internal/filter"
	"github.com/dyluth/sagastore/internal/inspect"
	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/dyluth/sagastore/pkg/saga/redisstore"
	"github.com/google/uuid"
)

// OutputFormat selects how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes a human-readable table.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON writes one JSON object per line.
	OutputFormatJSON OutputFormat = "json"
)

// EventSource delivers lifecycle events. *redisstore.Subscription
// implements it.
type EventSource interface {
	Events() <-chan *redisstore.Event
	Errors() <-chan error
}

// StreamEvents writes events from src matching criteria until ctx is
// cancelled or the source closes. A nil criteria passes every event.
// Malformed events are reported as warnings on errOut and skipped.
func StreamEvents(ctx context.Context, src EventSource, criteria *filter.Criteria, format OutputFormat, w, errOut io.Writer) error {
	if format == OutputFormatDefault {
		inspect.EventHeader(w)
	}

	events := src.Events()
	errs := src.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !criteria.Matches(event) {
				continue
			}

			if format == OutputFormatJSON {
				if err := inspect.FormatEventJSONL(w, event); err != nil {
					return err
				}
				continue
			}
			inspect.FormatEvent(w, event)
		}
	}
}

// Getter loads a saga instance by correlation id.
type Getter[T saga.Instance] interface {
	GetSaga(ctx context.Context, id uuid.UUID) (T, bool, error)
}

// PollForInstance polls until the instance with id exists.
// Returns an error if the timeout elapses first.
// Polls every 200ms for the specified timeout duration.
func PollForInstance[T saga.Instance](ctx context.Context, g Getter[T], id uuid.UUID, timeout time.Duration) (T, error) {
	var zero T

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		inst, found, err := g.GetSaga(ctx, id)
		if err != nil {
			return zero, fmt.Errorf("failed to query for saga: %w", err)
		}
		if found {
			return inst, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeoutCh:
			return zero, fmt.Errorf("timeout waiting for saga %s after %v", id, timeout)
		case <-ticker.C:
		}
	}
}
