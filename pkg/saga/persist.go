package saga

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// persister is the end-of-dispatch strategy for existing instances.
type persister[T Instance] interface {
	// update persists inst after the existing-instance pipe has run.
	// inserted reports whether this dispatch pre-inserted the record.
	update(ctx context.Context, conn Conn[T], inst T, inserted bool) error

	// remover returns the delete used when the context is completed.
	remover(conn Conn[T]) func(ctx context.Context, inst T) error
}

// plainPersister stores unconditionally on the dispatch's own connection.
type plainPersister[T Instance] struct{}

func (plainPersister[T]) update(ctx context.Context, conn Conn[T], inst T, _ bool) error {
	return conn.Store(ctx, inst)
}

func (plainPersister[T]) remover(conn Conn[T]) func(context.Context, T) error {
	return conn.Delete
}

// versionedPersister increments the instance version and re-checks the stored
// record on a fresh connection before writing.
//
// Without atomic, the re-read and the write are separate operations: a writer
// landing between them is overwritten silently.
//
// A dispatch that pre-inserted the record tolerates a single advance made by
// a concurrent initiator that lost the insert and updated the record first.
// The write then lands one version above that advance.
type versionedPersister[T Instance] struct {
	connector Connector[T]
	atomic    bool
	log       Logger
}

func (p *versionedPersister[T]) update(ctx context.Context, _ Conn[T], inst T, inserted bool) (err error) {
	v := any(inst).(Versioned)
	read := v.CurrentVersion()
	v.SetVersion(read + 1)

	allowed := read
	if inserted {
		allowed = read + 1
	}

	fresh, err := p.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire store connection: %w", err)
	}
	defer func() {
		err = multierr.Append(err, fresh.Close())
	}()

	if p.atomic {
		if vg, ok := fresh.(VersionedGateway[T]); ok {
			stored, err := vg.StoreIfVersion(ctx, inst, read)
			if err != nil {
				return err
			}
			if !stored && allowed > read {
				v.SetVersion(allowed + 1)
				if stored, err = vg.StoreIfVersion(ctx, inst, allowed); err != nil {
					return err
				}
			}
			if !stored {
				return fmt.Errorf("%w: stored version is no longer %d", ErrConcurrencyConflict, read)
			}
			return nil
		}
		p.log.Warn("gateway has no atomic version check, falling back to re-read",
			"saga", TypeName(inst),
			"backend", p.connector.Backend())
	}

	current, found, err := fresh.Load(ctx, inst.CorrelationID())
	if err != nil {
		return fmt.Errorf("failed to re-load saga for version check: %w", err)
	}

	if found {
		stored := any(current).(Versioned).CurrentVersion()
		if stored > allowed {
			return fmt.Errorf("%w: stored version %d, read version %d", ErrConcurrencyConflict, stored, read)
		}
		if stored > read {
			v.SetVersion(stored + 1)
		}
	}

	return fresh.Store(ctx, inst)
}

func (p *versionedPersister[T]) remover(Conn[T]) func(context.Context, T) error {
	return func(ctx context.Context, inst T) (err error) {
		fresh, err := p.connector.Connect(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire store connection: %w", err)
		}
		defer func() {
			err = multierr.Append(err, fresh.Close())
		}()

		return fresh.Delete(ctx, inst)
	}
}
