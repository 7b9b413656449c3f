package inspect

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
)

// Getter loads a saga instance by correlation id.
type Getter[T saga.Instance] interface {
	GetSaga(ctx context.Context, id uuid.UUID) (T, bool, error)
}

// GetInstance loads a saga instance and writes it as pretty-printed JSON.
// Returns *InstanceNotFoundError if no instance has the id.
func GetInstance[T saga.Instance](ctx context.Context, g Getter[T], correlationID string, w io.Writer) error {
	id, err := uuid.Parse(correlationID)
	if err != nil {
		return fmt.Errorf("invalid correlation ID format: must be a valid UUID")
	}

	inst, found, err := g.GetSaga(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch saga: %w", err)
	}
	if !found {
		return &InstanceNotFoundError{CorrelationID: correlationID}
	}

	if err := FormatSingleJSON(w, inst); err != nil {
		return fmt.Errorf("failed to format saga: %w", err)
	}
	return nil
}

// InstanceNotFoundError reports that no saga instance has the requested id.
type InstanceNotFoundError struct {
	CorrelationID string
}

func (e *InstanceNotFoundError) Error() string {
	return fmt.Sprintf("saga with correlation ID '%s' not found", e.CorrelationID)
}

// IsNotFound returns true if the error is an InstanceNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*InstanceNotFoundError)
	return ok
}
