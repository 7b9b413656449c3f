package saga

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	id := uuid.MustParse("5f0d8e1c-8c3a-4b59-9d4e-0a1b2c3d4e5f")
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "kind only",
			err:      &Error{Kind: ErrCorrelationMissing, InstanceType: "Order", MessageType: "Submit"},
			expected: "saga Order: Submit: correlation id was not specified",
		},
		{
			name: "with correlation id and cause",
			err: &Error{
				Kind:          ErrProcessingFailed,
				InstanceType:  "Order",
				MessageType:   "Submit",
				CorrelationID: id,
				Cause:         cause,
			},
			expected: "saga Order: Submit: saga processing failed (correlation id 5f0d8e1c-8c3a-4b59-9d4e-0a1b2c3d4e5f): connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Matching(t *testing.T) {
	cause := fmt.Errorf("%w: stored version 3, read version 2", ErrConcurrencyConflict)
	err := fmt.Errorf("dispatch: %w", &Error{Kind: ErrConcurrencyConflict, Cause: cause})

	assert.True(t, IsConcurrencyConflict(err))
	assert.False(t, IsCorrelationMissing(err))
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrProcessingFailed)

	var se *Error
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, ErrConcurrencyConflict, se.Kind)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "testSaga", TypeName(&testSaga{}))
	assert.Equal(t, "testSaga", TypeName((*testSaga)(nil)))
	assert.Equal(t, "initiate", TypeName(initiate{}))
	assert.Equal(t, "int", TypeName(1))
}
