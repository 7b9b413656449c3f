package redisstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
)

// Serialization helpers for converting saga instances to and from Redis hashes
//
// The instance itself is JSON-encoded into the data field. The version lives
// in its own field so that Lua scripts can compare it without decoding JSON.

// Hash field names.
const (
	fieldCorrelationID = "correlation_id"
	fieldVersion       = "version"
	fieldData          = "data"
	fieldUpdatedAt     = "updated_at_ms"
)

// InstanceToHash converts a saga instance to a Redis hash.
func InstanceToHash[T saga.Instance](inst T, now time.Time) (map[string]interface{}, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saga instance: %w", err)
	}

	return map[string]interface{}{
		fieldCorrelationID: inst.CorrelationID().String(),
		fieldVersion:       versionOf(inst),
		fieldData:          string(data),
		fieldUpdatedAt:     now.UnixMilli(),
	}, nil
}

// HashToInstance converts a Redis hash back to a saga instance. For versioned
// instances the version field of the hash is authoritative.
func HashToInstance[T saga.Instance](hash map[string]string) (T, error) {
	var inst T

	if err := json.Unmarshal([]byte(hash[fieldData]), &inst); err != nil {
		return inst, fmt.Errorf("failed to unmarshal saga instance: %w", err)
	}

	if v, ok := any(inst).(saga.Versioned); ok {
		version, err := strconv.Atoi(hash[fieldVersion])
		if err != nil {
			return inst, fmt.Errorf("invalid version field: %w", err)
		}
		v.SetVersion(version)
	}

	if id, err := uuid.Parse(hash[fieldCorrelationID]); err != nil || id != inst.CorrelationID() {
		return inst, fmt.Errorf("correlation id field %q does not match instance data", hash[fieldCorrelationID])
	}

	return inst, nil
}

// hashArgs flattens a hash into the field/value argument list used by HSET
// and the Lua scripts.
func hashArgs(hash map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, 2*len(hash))
	for _, field := range []string{fieldCorrelationID, fieldVersion, fieldData, fieldUpdatedAt} {
		args = append(args, field, hash[field])
	}
	return args
}

func versionOf(inst saga.Instance) int {
	if v, ok := inst.(saga.Versioned); ok {
		return v.CurrentVersion()
	}
	return 0
}
