package redisstore

import (
	"fmt"

	"github.com/google/uuid"
)

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced so that several applications,
// or several saga types, can share a Redis server.
//
// Key pattern: saga:{namespace}:{saga_type}:{correlation_id}
// Channel pattern: saga:{namespace}:{saga_type}:events

// InstanceKey returns the Redis key for a saga instance.
// Pattern: saga:{namespace}:{saga_type}:{correlation_id}
func InstanceKey(namespace, sagaType string, id uuid.UUID) string {
	return fmt.Sprintf("saga:%s:%s:%s", namespace, sagaType, id)
}

// EventsChannel returns the Pub/Sub channel for instance lifecycle events.
// Pattern: saga:{namespace}:{saga_type}:events
func EventsChannel(namespace, sagaType string) string {
	return fmt.Sprintf("saga:%s:%s:events", namespace, sagaType)
}
