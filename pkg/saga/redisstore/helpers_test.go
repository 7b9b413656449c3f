package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// order is a versioned saga used by the store tests.
type order struct {
	ID        uuid.UUID `json:"id"`
	Customer  string    `json:"customer"`
	Submitted bool      `json:"submitted"`
	Lines     int       `json:"lines"`
	Version   int       `json:"version"`
}

func (o *order) CorrelationID() uuid.UUID { return o.ID }
func (o *order) CurrentVersion() int      { return o.Version }
func (o *order) SetVersion(v int)         { o.Version = v }

type submitOrder struct {
	ID       uuid.UUID
	Customer string
}

func (m submitOrder) CorrelationID() uuid.UUID { return m.ID }

type addLine struct{ ID uuid.UUID }

func (m addLine) CorrelationID() uuid.UUID { return m.ID }

type closeOrder struct{ ID uuid.UUID }

func (m closeOrder) CorrelationID() uuid.UUID { return m.ID }

func newOrder(msg saga.Message) *order {
	return &order{ID: msg.CorrelationID()}
}

var orderPipe = saga.PipeFunc[*order](func(ctx context.Context, cc *saga.ConsumeContext[*order]) error {
	switch m := cc.Message().(type) {
	case submitOrder:
		cc.Saga().Submitted = true
		cc.Saga().Customer = m.Customer
	case addLine:
		cc.Saga().Lines++
	case closeOrder:
		return cc.SetCompleted(ctx)
	}
	return nil
})

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T, opts ...Option) (*Store[*order], *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := New[*order](&redis.Options{Addr: mr.Addr()}, "test-ns", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func connect(t *testing.T, store *Store[*order]) saga.Conn[*order] {
	t.Helper()
	c, err := store.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}
