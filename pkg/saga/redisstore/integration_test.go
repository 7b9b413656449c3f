//go:build integration

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/sagastore/internal/testutil"
	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func TestIntegration_VersionedDispatchAgainstRedis(t *testing.T) {
	redisURL := testutil.StartRedis(t).URL

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewFromURL[*order](redisURL, "integration", WithEvents())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	repo, err := saga.NewRepository[*order](store, saga.WithAtomicVersionCheck())
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	id := uuid.New()
	policy := saga.NewInitiatingPolicy(newOrder, true)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			return repo.Dispatch(gctx, submitOrder{ID: id, Customer: "acme"}, policy, orderPipe)
		})
	}
	// Concurrent updates of one instance may legitimately conflict.
	if err := g.Wait(); err != nil {
		require.True(t, saga.IsConcurrencyConflict(err), "unexpected error: %v", err)
	}

	inst, found, err := repo.GetSaga(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, inst.Submitted)
	assert.GreaterOrEqual(t, inst.Version, 1)

	select {
	case event := <-sub.Events():
		assert.Equal(t, EventInserted, event.Type)
		assert.Equal(t, id, event.CorrelationID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for insert event")
	}

	require.NoError(t, repo.Dispatch(ctx, closeOrder{ID: id}, policy, orderPipe))
	_, found, err = repo.GetSaga(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIntegration_StoreOutage(t *testing.T) {
	redisC := testutil.StartRedis(t)

	redisOpts, err := redis.ParseURL(redisC.URL)
	require.NoError(t, err)
	redisOpts.ReadTimeout = 500 * time.Millisecond
	redisOpts.WriteTimeout = 500 * time.Millisecond
	redisOpts.MaxRetries = -1

	store, err := New[*order](redisOpts, "outage")
	require.NoError(t, err)
	defer store.Close()

	repo, err := saga.NewRepository[*order](store, saga.WithVersioning())
	require.NoError(t, err)

	ctx := context.Background()
	policy := saga.NewInitiatingPolicy(newOrder, false)
	id := uuid.New()

	require.NoError(t, repo.Dispatch(ctx, submitOrder{ID: id, Customer: "acme"}, policy, orderPipe))

	redisC.Pause()

	err = repo.Dispatch(ctx, addLine{ID: id}, policy, orderPipe)
	require.Error(t, err)
	assert.ErrorIs(t, err, saga.ErrProcessingFailed)
	assert.Error(t, store.Ping(ctx))

	redisC.Unpause()

	require.Eventually(t, func() bool { return store.Ping(ctx) == nil }, 5*time.Second, 100*time.Millisecond)
	require.NoError(t, repo.Dispatch(ctx, addLine{ID: id}, policy, orderPipe))

	inst, found, err := repo.GetSaga(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, inst.Lines)
	assert.Equal(t, 1, inst.Version)
}
