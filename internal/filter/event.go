package filter

import (
	"path/filepath"

	"github.com/dyluth/sagastore/pkg/saga/redisstore"
	"github.com/google/uuid"
)

// Criteria defines filtering criteria for lifecycle events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	TypeGlob      string    // Glob pattern for event type, empty = no filter
	CorrelationID uuid.UUID // Exact match, uuid.Nil = no filter
	MinVersion    int       // Events below this version are dropped, 0 = no filter
}

// Validate reports a malformed type glob.
func (c *Criteria) Validate() error {
	if c.TypeGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TypeGlob, "")
	return err
}

// Matches returns true if the event matches all filter criteria.
// A nil Criteria matches everything.
func (c *Criteria) Matches(e *redisstore.Event) bool {
	if c == nil {
		return true
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	if c.CorrelationID != uuid.Nil && e.CorrelationID != c.CorrelationID {
		return false
	}

	if c.MinVersion > 0 && e.Version < c.MinVersion {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c != nil && (c.TypeGlob != "" || c.CorrelationID != uuid.Nil || c.MinVersion > 0)
}
