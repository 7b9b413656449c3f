package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger    Logger
	versioned bool
	atomic    bool
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithVersioning enables the optimistic version check on existing-instance
// updates. The saga type must implement Versioned.
func WithVersioning() Option {
	return func(o *options) {
		o.versioned = true
	}
}

// WithAtomicVersionCheck enables versioning and replaces the re-read check
// with a compare-and-swap on gateways implementing VersionedGateway.
func WithAtomicVersionCheck() Option {
	return func(o *options) {
		o.versioned = true
		o.atomic = true
	}
}

// Repository dispatches messages to saga instances of type T.
// It is safe for concurrent use; each dispatch acquires its own connection.
type Repository[T Instance] struct {
	connector Connector[T]
	persist   persister[T]
	log       Logger
	sagaType  string
	opts      options
}

// NewRepository creates a repository over connector.
// Returns an error if versioning is requested for a type that does not
// implement Versioned.
func NewRepository[T Instance](connector Connector[T], opts ...Option) (*Repository[T], error) {
	if connector == nil {
		return nil, fmt.Errorf("connector cannot be nil")
	}

	o := options{logger: NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	r := &Repository[T]{
		connector: connector,
		log:       o.logger,
		sagaType:  TypeName(zero),
		opts:      o,
	}

	if o.versioned {
		if _, ok := any(zero).(Versioned); !ok {
			return nil, fmt.Errorf("saga type %s does not implement saga.Versioned", r.sagaType)
		}
		r.persist = &versionedPersister[T]{connector: connector, atomic: o.atomic, log: o.logger}
	} else {
		r.persist = plainPersister[T]{}
	}

	return r, nil
}

// Dispatch correlates msg with a saga instance and runs policy and next
// against it, then persists or deletes the instance.
func (r *Repository[T]) Dispatch(ctx context.Context, msg Message, policy Policy[T], next Pipe[T]) (err error) {
	var id uuid.UUID
	if msg != nil {
		id = msg.CorrelationID()
	}
	if id == uuid.Nil {
		return r.newError(ErrCorrelationMissing, msg, uuid.Nil, nil)
	}

	defer func() {
		if p := recover(); p != nil {
			// err holds only a release failure at this point.
			err = multierr.Append(r.newError(ErrProcessingFailed, msg, id, fmt.Errorf("panic: %v", p)), err)
		}
	}()

	conn, err := r.connector.Connect(ctx)
	if err != nil {
		return r.wrap(msg, id, fmt.Errorf("failed to acquire store connection: %w", err))
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, r.wrap(msg, id, fmt.Errorf("failed to release store connection: %w", cerr)))
		}
	}()

	if err := r.dispatch(ctx, conn, id, msg, policy, next); err != nil {
		return r.wrap(msg, id, err)
	}

	return nil
}

func (r *Repository[T]) dispatch(ctx context.Context, conn Conn[T], id uuid.UUID, msg Message, policy Policy[T], next Pipe[T]) error {
	var inserted bool
	inst, found := policy.PreInsert(ctx, msg)
	if found {
		var err error
		inserted, err = conn.TryInsert(ctx, inst)
		if err != nil {
			return fmt.Errorf("failed to pre-insert saga: %w", err)
		}

		if inserted {
			r.log.Debug("saga inserted", r.keyvals(msg, inst.CorrelationID())...)
		} else {
			// Concurrent initiation: continue with whatever the winner stored,
			// or the candidate if it has not been written yet.
			r.log.Debug("saga insert was a duplicate", r.keyvals(msg, inst.CorrelationID())...)

			existing, ok, err := conn.Load(ctx, inst.CorrelationID())
			if err != nil {
				return fmt.Errorf("failed to load saga: %w", err)
			}
			if ok {
				inst = existing
			}
		}
	} else {
		var err error
		inst, found, err = conn.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load saga: %w", err)
		}
	}

	if !found {
		return policy.Missing(ctx, msg, &missingPipe[T]{conn: conn, next: next, log: r.log})
	}

	return r.sendToInstance(ctx, conn, msg, policy, next, inst, inserted)
}

func (r *Repository[T]) sendToInstance(ctx context.Context, conn Conn[T], msg Message, policy Policy[T], next Pipe[T], inst T, inserted bool) error {
	r.log.Debug("saga used", r.keyvals(msg, inst.CorrelationID())...)

	cc := &ConsumeContext[T]{
		saga:   inst,
		msg:    msg,
		remove: r.persist.remover(conn),
		log:    r.log,
	}

	if err := policy.Existing(ctx, cc, next); err != nil {
		return err
	}

	if cc.IsCompleted() {
		return nil
	}

	if err := r.persist.update(ctx, conn, inst, inserted); err != nil {
		return err
	}

	r.log.Debug("saga stored", r.keyvals(msg, inst.CorrelationID())...)
	return nil
}

// DispatchQuery always fails: a key-value store supports single-key lookup
// only. The store is never touched.
func (r *Repository[T]) DispatchQuery(_ context.Context, q Query[T], _ Policy[T], _ Pipe[T]) error {
	return r.newError(ErrUnsupportedOperation, q.Message, uuid.Nil, nil)
}

// GetSaga loads the instance stored under id. It returns (zero, false, nil)
// when no instance exists.
func (r *Repository[T]) GetSaga(ctx context.Context, id uuid.UUID) (_ T, _ bool, err error) {
	var zero T

	conn, err := r.connector.Connect(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("failed to acquire store connection: %w", err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	inst, found, err := conn.Load(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to load saga: %w", err)
	}

	return inst, found, nil
}

// Probe reports the repository configuration for operational tooling.
func (r *Repository[T]) Probe() ProbeResult {
	return ProbeResult{
		Scope:              "sagaRepository",
		SagaType:           r.sagaType,
		Persistence:        r.connector.Backend(),
		Versioned:          r.opts.versioned,
		AtomicVersionCheck: r.opts.atomic,
	}
}

// wrap returns err unchanged if it is already an *Error, otherwise wraps it
// as a processing failure, or a conflict if it reports one.
func (r *Repository[T]) wrap(msg Message, id uuid.UUID, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}

	kind := ErrProcessingFailed
	if errors.Is(err, ErrConcurrencyConflict) {
		kind = ErrConcurrencyConflict
	}

	return r.newError(kind, msg, id, err)
}

func (r *Repository[T]) newError(kind error, msg Message, id uuid.UUID, cause error) *Error {
	return &Error{
		Kind:          kind,
		InstanceType:  r.sagaType,
		MessageType:   TypeName(msg),
		CorrelationID: id,
		Cause:         cause,
	}
}

func (r *Repository[T]) keyvals(msg Message, id uuid.UUID) []any {
	return []any{
		"saga", r.sagaType,
		"message", TypeName(msg),
		"correlation_id", id,
	}
}
