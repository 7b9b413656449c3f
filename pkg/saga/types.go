package saga

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Instance is the persisted state of one saga, identified by its correlation id.
// The id is the sole lookup key into the store and never changes once assigned.
type Instance interface {
	CorrelationID() uuid.UUID
}

// Versioned is implemented by instances that take part in optimistic
// concurrency. The version starts at zero on first persist and is incremented
// once per successful existing-instance update.
type Versioned interface {
	Instance
	CurrentVersion() int
	SetVersion(v int)
}

// Message is an inbound message routed to a saga instance.
// A message whose CorrelationID is uuid.Nil cannot be correlated.
type Message interface {
	CorrelationID() uuid.UUID
}

// Query describes a multi-instance correlation. Repositories backed by a
// key-value store never support it.
type Query[T Instance] struct {
	Message   Message
	Predicate func(T) bool
}

// Pipe is the downstream consumer logic invoked for a saga instance.
type Pipe[T Instance] interface {
	Send(ctx context.Context, cc *ConsumeContext[T]) error
}

// PipeFunc adapts a function to the Pipe interface.
type PipeFunc[T Instance] func(ctx context.Context, cc *ConsumeContext[T]) error

// Send calls f(ctx, cc).
func (f PipeFunc[T]) Send(ctx context.Context, cc *ConsumeContext[T]) error {
	return f(ctx, cc)
}

// Policy is the caller-supplied decision logic for a saga type.
type Policy[T Instance] interface {
	// PreInsert reports whether a candidate instance should be created before
	// the store is searched. The candidate is inserted only if no record exists.
	PreInsert(ctx context.Context, msg Message) (T, bool)

	// Missing is called when no instance exists for the message. To create
	// one, the policy sends a context built with NewConsumeContext to next.
	Missing(ctx context.Context, msg Message, next Pipe[T]) error

	// Existing is called with the located instance. It normally sends cc to
	// next.
	Existing(ctx context.Context, cc *ConsumeContext[T], next Pipe[T]) error
}

// ProbeResult describes a repository for operational tooling.
type ProbeResult struct {
	Scope              string `json:"scope"`
	SagaType           string `json:"saga_type"`
	Persistence        string `json:"persistence"`
	Versioned          bool   `json:"versioned"`
	AtomicVersionCheck bool   `json:"atomic_version_check"`
}

// TypeName returns the short type name of v, without package path or pointer
// prefix. It is used in logs, errors and store keys.
func TypeName(v any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", v), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
