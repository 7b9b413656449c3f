package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConsumeContext carries a saga instance and the message being processed
// through one dispatch. It must not be reused across dispatches.
type ConsumeContext[T Instance] struct {
	saga      T
	msg       Message
	remove    func(ctx context.Context, inst T) error
	log       Logger
	completed bool
}

// NewConsumeContext wraps a newly created instance for the message. Policies
// use it in Missing before sending to the continuation pipe.
func NewConsumeContext[T Instance](inst T, msg Message) *ConsumeContext[T] {
	return &ConsumeContext[T]{saga: inst, msg: msg, log: NopLogger{}}
}

// Saga returns the wrapped instance.
func (c *ConsumeContext[T]) Saga() T {
	return c.saga
}

// Message returns the message being processed.
func (c *ConsumeContext[T]) Message() Message {
	return c.msg
}

// CorrelationID returns the instance's correlation id.
func (c *ConsumeContext[T]) CorrelationID() uuid.UUID {
	return c.saga.CorrelationID()
}

// SetCompleted marks the instance as completed. For an existing instance the
// record is deleted immediately and the repository skips its own persist step;
// for a new instance nothing is stored. Calling it again is a no-op.
func (c *ConsumeContext[T]) SetCompleted(ctx context.Context) error {
	if c.completed {
		return nil
	}

	if c.remove != nil {
		if err := c.remove(ctx, c.saga); err != nil {
			return fmt.Errorf("failed to remove completed saga: %w", err)
		}
	}

	c.completed = true
	c.log.Debug("saga removed",
		"saga", TypeName(c.saga),
		"message", TypeName(c.msg),
		"correlation_id", c.saga.CorrelationID())

	return nil
}

// IsCompleted reports whether SetCompleted has succeeded.
func (c *ConsumeContext[T]) IsCompleted() bool {
	return c.completed
}
