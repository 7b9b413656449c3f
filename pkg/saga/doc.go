// Package saga manages correlation-keyed saga instances persisted in a
// key-value store.
//
// # Overview
//
// A saga instance is long-lived process state located by a single correlation
// id. Messages arrive carrying that id and are dispatched through a Repository,
// which decides whether the message creates a new instance, attaches to an
// existing one, or finds nothing to correlate with. The caller supplies the
// decision logic as a Policy and the consumer logic as a Pipe.
//
// The store offers no multi-key transactions. All coordination between
// concurrent dispatches for the same id is delegated to the store's per-key
// atomicity (TryInsert) or, for versioned sagas, to an optimistic version check.
//
// # Dispatch
//
//	repo, err := saga.NewRepository[*OrderSaga](store, saga.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	err = repo.Dispatch(ctx, msg, saga.NewInitiatingPolicy(newOrder, true), saga.PipeFunc[*OrderSaga](
//		func(ctx context.Context, cc *saga.ConsumeContext[*OrderSaga]) error {
//			cc.Saga().Submitted = true
//			return nil
//		},
//	))
//
// A dispatch runs as follows:
//
//  1. a message without a correlation id fails with ErrCorrelationMissing;
//  2. a scoped store connection is acquired and released on every exit path;
//  3. the policy may pre-insert a candidate instance (first writer wins);
//  4. otherwise the instance is loaded by id;
//  5. when absent, Policy.Missing runs with a continuation that stores the new
//     instance after the pipe finishes, unless it was completed;
//  6. when present, Policy.Existing runs with a ConsumeContext and the
//     instance is persisted afterwards, unless it was completed, in which case
//     it has already been deleted.
//
// # Completion
//
// Completing an instance removes it from the store. There is no tombstone:
// "completed" means "absent".
//
// # Versioning
//
// Repositories built WithVersioning require instances implementing Versioned.
// Each successful existing-instance update increments the version and checks
// the stored record for a concurrent writer before storing. The check detects
// lost updates but cannot prevent them: the window between the re-read and the
// write is not locked. WithAtomicVersionCheck closes that window for gateways
// that implement VersionedGateway.
//
// # Errors
//
// Every failure is returned as *Error. Match the kind with errors.Is against
// ErrCorrelationMissing, ErrUnsupportedOperation, ErrConcurrencyConflict or
// ErrProcessingFailed. Nothing is retried internally.
package saga
