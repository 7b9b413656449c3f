package saga

import (
	"context"
	"fmt"
)

// InitiatingPolicy creates a saga instance when none exists for the message.
type InitiatingPolicy[T Instance] struct {
	factory   func(msg Message) T
	preInsert bool
}

// NewInitiatingPolicy returns a policy that builds new instances with factory.
// With preInsert, the instance is inserted before the store is searched so
// that concurrent initiating messages converge on a single record.
func NewInitiatingPolicy[T Instance](factory func(msg Message) T, preInsert bool) *InitiatingPolicy[T] {
	return &InitiatingPolicy[T]{factory: factory, preInsert: preInsert}
}

func (p *InitiatingPolicy[T]) PreInsert(_ context.Context, msg Message) (T, bool) {
	if !p.preInsert {
		var zero T
		return zero, false
	}
	return p.factory(msg), true
}

func (p *InitiatingPolicy[T]) Missing(ctx context.Context, msg Message, next Pipe[T]) error {
	return next.Send(ctx, NewConsumeContext(p.factory(msg), msg))
}

func (p *InitiatingPolicy[T]) Existing(ctx context.Context, cc *ConsumeContext[T], next Pipe[T]) error {
	return next.Send(ctx, cc)
}

// ExistingOnlyPolicy only delivers messages to instances that already exist.
type ExistingOnlyPolicy[T Instance] struct {
	strict bool
}

// NewExistingOnlyPolicy returns a policy that ignores uncorrelated messages,
// or fails them with ErrInstanceNotFound when strict is set.
func NewExistingOnlyPolicy[T Instance](strict bool) *ExistingOnlyPolicy[T] {
	return &ExistingOnlyPolicy[T]{strict: strict}
}

func (p *ExistingOnlyPolicy[T]) PreInsert(context.Context, Message) (T, bool) {
	var zero T
	return zero, false
}

func (p *ExistingOnlyPolicy[T]) Missing(_ context.Context, msg Message, _ Pipe[T]) error {
	if p.strict {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, msg.CorrelationID())
	}
	return nil
}

func (p *ExistingOnlyPolicy[T]) Existing(ctx context.Context, cc *ConsumeContext[T], next Pipe[T]) error {
	return next.Send(ctx, cc)
}
