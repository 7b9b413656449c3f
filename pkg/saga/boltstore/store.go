// Package boltstore keeps saga instances in an embedded BoltDB file.
//
// Instances live under nested buckets:
//
//	{namespace} / {saga type} / {correlation id} => record
//
// where record is a JSON document holding the version, the last update time
// and the instance itself. Every operation runs in its own bbolt transaction,
// so TryInsert and StoreIfVersion are atomic.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// ErrClosed is returned by operations on a closed store or connection.
var ErrClosed = errors.New("bolt saga store is closed")

// record is the stored representation of one instance.
type record struct {
	Version     int             `json:"version"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
	Data        json.RawMessage `json:"data"`
}

// Store keeps saga instances of type T in a BoltDB file.
// It implements saga.Connector and is safe for concurrent use.
type Store[T saga.Instance] struct {
	db        *bbolt.DB
	namespace []byte
	sagaType  []byte
	now       func() time.Time

	m      sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) the BoltDB file at path.
// Returns an error if namespace is empty or the file is locked by another
// process for longer than one second.
func Open[T saga.Instance](path, namespace string) (*Store[T], error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	db, err := bbolt.Open(path, os.FileMode(0600), &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	var zero T
	return &Store[T]{
		db:        db,
		namespace: []byte(namespace),
		sagaType:  []byte(saga.TypeName(zero)),
		now:       time.Now,
	}, nil
}

// Close closes the database. Further operations return ErrClosed.
func (s *Store[T]) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Ping reports whether the store is open.
func (s *Store[T]) Ping(context.Context) error {
	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Backend implements saga.Connector.
func (s *Store[T]) Backend() string {
	return "bolt"
}

// Connect returns a connection handle. bbolt has no connections of its own;
// the handle only scopes use of the store to one dispatch.
func (s *Store[T]) Connect(ctx context.Context) (saga.Conn[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return &conn[T]{store: s}, nil
}

// view runs fn in a read-only transaction against the saga type's bucket,
// which is nil if nothing has been stored yet.
func (s *Store[T]) view(fn func(b *bbolt.Bucket) error) error {
	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(s.namespace)
		if root == nil {
			return fn(nil)
		}
		return fn(root.Bucket(s.sagaType))
	})
}

// update runs fn in a read-write transaction against the saga type's bucket,
// creating it if necessary.
func (s *Store[T]) update(fn func(b *bbolt.Bucket) error) error {
	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(s.namespace)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists(s.sagaType)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func (s *Store[T]) marshal(inst T) ([]byte, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saga instance: %w", err)
	}

	version := 0
	if v, ok := any(inst).(saga.Versioned); ok {
		version = v.CurrentVersion()
	}

	return json.Marshal(record{
		Version:     version,
		UpdatedAtMs: s.now().UnixMilli(),
		Data:        data,
	})
}

func unmarshal[T saga.Instance](buf []byte) (T, int, error) {
	var (
		rec  record
		inst T
	)

	if err := json.Unmarshal(buf, &rec); err != nil {
		return inst, 0, fmt.Errorf("failed to unmarshal saga record: %w", err)
	}
	if err := json.Unmarshal(rec.Data, &inst); err != nil {
		return inst, 0, fmt.Errorf("failed to unmarshal saga instance: %w", err)
	}
	if v, ok := any(inst).(saga.Versioned); ok {
		v.SetVersion(rec.Version)
	}

	return inst, rec.Version, nil
}

func key(id uuid.UUID) []byte {
	return []byte(id.String())
}

// conn implements saga.Conn and saga.VersionedGateway.
type conn[T saga.Instance] struct {
	store *Store[T]

	m      sync.Mutex
	closed bool
}

func (c *conn[T]) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return ErrClosed
	}
	return nil
}

// Load reads the instance stored under id.
// Returns (zero, false, nil) if no instance exists.
func (c *conn[T]) Load(ctx context.Context, id uuid.UUID) (inst T, found bool, err error) {
	if err := c.check(ctx); err != nil {
		return inst, false, err
	}

	err = c.store.view(func(b *bbolt.Bucket) error {
		if b == nil {
			return nil
		}

		buf := b.Get(key(id))
		if buf == nil {
			return nil
		}

		inst, _, err = unmarshal[T](buf)
		found = err == nil
		return err
	})
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("failed to read saga from bolt: %w", err)
	}

	return inst, found, nil
}

// Store replaces the stored instance, creating it if absent.
func (c *conn[T]) Store(ctx context.Context, inst T) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	buf, err := c.store.marshal(inst)
	if err != nil {
		return err
	}

	if err := c.store.update(func(b *bbolt.Bucket) error {
		return b.Put(key(inst.CorrelationID()), buf)
	}); err != nil {
		return fmt.Errorf("failed to write saga to bolt: %w", err)
	}

	return nil
}

// Delete removes the instance. Deleting an absent instance is not an error.
func (c *conn[T]) Delete(ctx context.Context, inst T) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	if err := c.store.update(func(b *bbolt.Bucket) error {
		return b.Delete(key(inst.CorrelationID()))
	}); err != nil {
		return fmt.Errorf("failed to delete saga from bolt: %w", err)
	}

	return nil
}

// TryInsert writes inst only if no instance exists under its correlation id.
func (c *conn[T]) TryInsert(ctx context.Context, inst T) (inserted bool, err error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}

	buf, err := c.store.marshal(inst)
	if err != nil {
		return false, err
	}

	err = c.store.update(func(b *bbolt.Bucket) error {
		k := key(inst.CorrelationID())
		if b.Get(k) != nil {
			return nil
		}
		inserted = true
		return b.Put(k, buf)
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert saga into bolt: %w", err)
	}

	return inserted, nil
}

// StoreIfVersion replaces the stored instance only if its stored version is
// still expected. A missing instance never matches.
func (c *conn[T]) StoreIfVersion(ctx context.Context, inst T, expected int) (stored bool, err error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}

	buf, err := c.store.marshal(inst)
	if err != nil {
		return false, err
	}

	err = c.store.update(func(b *bbolt.Bucket) error {
		k := key(inst.CorrelationID())

		existing := b.Get(k)
		if existing == nil {
			return nil
		}

		var rec record
		if err := json.Unmarshal(existing, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal saga record: %w", err)
		}
		if rec.Version != expected {
			return nil
		}

		stored = true
		return b.Put(k, buf)
	})
	if err != nil {
		return false, fmt.Errorf("failed to write saga to bolt: %w", err)
	}

	return stored, nil
}

// Close releases the handle. Closing twice is a no-op.
func (c *conn[T]) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	c.closed = true
	return nil
}
