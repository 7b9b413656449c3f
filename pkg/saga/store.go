package saga

import (
	"context"

	"github.com/google/uuid"
)

// Gateway is the synchronous facade over a key-value backend.
type Gateway[T Instance] interface {
	// Load returns the instance stored under id. A missing record is reported
	// as (zero, false, nil).
	Load(ctx context.Context, id uuid.UUID) (T, bool, error)

	// Store writes inst, replacing any record under the same id.
	Store(ctx context.Context, inst T) error

	// Delete removes inst. Deleting an absent record is not an error.
	Delete(ctx context.Context, inst T) error

	// TryInsert creates inst only if no record exists for its id. It returns
	// false, not an error, when a record already exists.
	TryInsert(ctx context.Context, inst T) (bool, error)
}

// VersionedGateway is implemented by gateways that can replace a record only
// if its stored version still equals expected.
type VersionedGateway[T Instance] interface {
	// StoreIfVersion writes inst if the stored record exists and its version
	// equals expected. It returns false, not an error, when it does not.
	StoreIfVersion(ctx context.Context, inst T, expected int) (bool, error)
}

// Conn is a Gateway bound to a connection acquired for one dispatch.
// It must be closed when the dispatch ends.
type Conn[T Instance] interface {
	Gateway[T]
	Close() error
}

// Connector hands out scoped store connections.
type Connector[T Instance] interface {
	Connect(ctx context.Context) (Conn[T], error)

	// Backend identifies the persistence implementation, e.g. "redis".
	Backend() string
}
