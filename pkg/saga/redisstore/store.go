package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// tryInsertScript writes the hash only if the key does not exist.
// Returns 1 if written, 0 if a record was already present.
var tryInsertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// storeIfVersionScript replaces the hash only if its version field equals
// ARGV[1]. A missing record never matches.
var storeIfVersionScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current or tonumber(current) ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1
`)

// Option configures a Store.
type Option func(*options)

type options struct {
	events bool
	logger saga.Logger
	now    func() time.Time
}

// WithEvents publishes an Event on the saga type's events channel after every
// successful insert, store and delete.
func WithEvents() Option {
	return func(o *options) {
		o.events = true
	}
}

// WithLogger sets the logger used for non-fatal failures such as event
// publication errors.
func WithLogger(l saga.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Store keeps saga instances of type T in Redis, one hash per instance.
// It implements saga.Connector and is safe for concurrent use.
type Store[T saga.Instance] struct {
	rdb       *redis.Client
	namespace string
	sagaType  string
	opts      options
}

// New creates a Store for the specified namespace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - namespace: key prefix shared by all saga types of one application
//
// Returns an error if namespace is empty.
func New[T saga.Instance](redisOpts *redis.Options, namespace string, opts ...Option) (*Store[T], error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	o := options{logger: saga.NopLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	return &Store[T]{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
		sagaType:  saga.TypeName(zero),
		opts:      o,
	}, nil
}

// NewFromURL creates a Store from a redis:// URL.
func NewFromURL[T saga.Instance](url, namespace string, opts ...Option) (*Store[T], error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return New[T](redisOpts, namespace, opts...)
}

// Close closes the Redis client. Implements io.Closer.
func (s *Store[T]) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *Store[T]) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Backend implements saga.Connector.
func (s *Store[T]) Backend() string {
	return "redis"
}

// SagaType returns the type name used in keys and channels.
func (s *Store[T]) SagaType() string {
	return s.sagaType
}

// Connect reserves a dedicated connection from the pool. The returned
// connection must be closed to hand it back.
func (s *Store[T]) Connect(ctx context.Context) (saga.Conn[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	return &conn[T]{store: s, c: s.rdb.Conn()}, nil
}

func (s *Store[T]) key(id uuid.UUID) string {
	return InstanceKey(s.namespace, s.sagaType, id)
}

// conn implements saga.Conn and saga.VersionedGateway on one pooled connection.
type conn[T saga.Instance] struct {
	store *Store[T]
	c     *redis.Conn
}

// Load reads the instance stored under id.
// Returns (zero, false, nil) if no instance exists.
func (c *conn[T]) Load(ctx context.Context, id uuid.UUID) (T, bool, error) {
	var zero T

	// HGetAll returns an empty map for non-existent keys
	hash, err := c.c.HGetAll(ctx, c.store.key(id)).Result()
	if err != nil {
		return zero, false, fmt.Errorf("failed to read saga from Redis: %w", err)
	}
	if len(hash) == 0 {
		return zero, false, nil
	}

	inst, err := HashToInstance[T](hash)
	if err != nil {
		return zero, false, fmt.Errorf("failed to deserialize saga: %w", err)
	}

	return inst, true, nil
}

// Store replaces the stored instance (full replacement, created if absent).
func (c *conn[T]) Store(ctx context.Context, inst T) error {
	hash, err := InstanceToHash(inst, c.store.opts.now())
	if err != nil {
		return fmt.Errorf("failed to serialize saga: %w", err)
	}

	key := c.store.key(inst.CorrelationID())
	_, err = c.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hashArgs(hash)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write saga to Redis: %w", err)
	}

	c.store.publish(ctx, c.c, EventStored, inst)
	return nil
}

// Delete removes the instance. Deleting an absent instance is not an error.
func (c *conn[T]) Delete(ctx context.Context, inst T) error {
	if err := c.c.Del(ctx, c.store.key(inst.CorrelationID())).Err(); err != nil {
		return fmt.Errorf("failed to delete saga from Redis: %w", err)
	}

	c.store.publish(ctx, c.c, EventRemoved, inst)
	return nil
}

// TryInsert writes inst only if no instance exists under its correlation id.
func (c *conn[T]) TryInsert(ctx context.Context, inst T) (bool, error) {
	hash, err := InstanceToHash(inst, c.store.opts.now())
	if err != nil {
		return false, fmt.Errorf("failed to serialize saga: %w", err)
	}

	keys := []string{c.store.key(inst.CorrelationID())}
	inserted, err := tryInsertScript.Run(ctx, c.c, keys, hashArgs(hash)...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to insert saga into Redis: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	c.store.publish(ctx, c.c, EventInserted, inst)
	return true, nil
}

// StoreIfVersion replaces the stored instance only if its stored version is
// still expected. Implements saga.VersionedGateway.
func (c *conn[T]) StoreIfVersion(ctx context.Context, inst T, expected int) (bool, error) {
	hash, err := InstanceToHash(inst, c.store.opts.now())
	if err != nil {
		return false, fmt.Errorf("failed to serialize saga: %w", err)
	}

	keys := []string{c.store.key(inst.CorrelationID())}
	args := append([]interface{}{expected}, hashArgs(hash)...)
	stored, err := storeIfVersionScript.Run(ctx, c.c, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to write saga to Redis: %w", err)
	}
	if stored == 0 {
		return false, nil
	}

	c.store.publish(ctx, c.c, EventStored, inst)
	return true, nil
}

// Close returns the connection to the pool.
func (c *conn[T]) Close() error {
	return c.c.Close()
}
