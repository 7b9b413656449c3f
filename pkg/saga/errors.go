package saga

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrCorrelationMissing means the message carried no correlation id.
	ErrCorrelationMissing = errors.New("correlation id was not specified")

	// ErrUnsupportedOperation means a multi-instance query was dispatched.
	ErrUnsupportedOperation = errors.New("key-value saga repository does not support queries")

	// ErrConcurrencyConflict means a versioned update found that another
	// writer had already advanced the stored instance.
	ErrConcurrencyConflict = errors.New("saga instance was updated concurrently")

	// ErrProcessingFailed wraps any other failure raised while dispatching.
	ErrProcessingFailed = errors.New("saga processing failed")

	// ErrInstanceNotFound is returned by ExistingOnlyPolicy in strict mode when
	// no instance matches the message.
	ErrInstanceNotFound = errors.New("saga instance not found")
)

// Error is returned by every Repository dispatch failure.
type Error struct {
	// Kind is one of the ErrXxx sentinels above.
	Kind error

	InstanceType  string
	MessageType   string
	CorrelationID uuid.UUID

	// Cause is the underlying failure, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("saga %s: %s: %v", e.InstanceType, e.MessageType, e.Kind)
	if e.CorrelationID != uuid.Nil {
		msg = fmt.Sprintf("%s (correlation id %s)", msg, e.CorrelationID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// IsConcurrencyConflict returns true if err is a versioned update conflict.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsCorrelationMissing returns true if err reports a message without a
// correlation id.
func IsCorrelationMissing(err error) bool {
	return errors.Is(err, ErrCorrelationMissing)
}
