package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type ticket struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Comments int       `json:"comments"`
	Version  int       `json:"-"`
}

func (t *ticket) CorrelationID() uuid.UUID { return t.ID }
func (t *ticket) CurrentVersion() int      { return t.Version }
func (t *ticket) SetVersion(v int)         { t.Version = v }

type openTicket struct {
	ID    uuid.UUID
	Title string
}

func (m openTicket) CorrelationID() uuid.UUID { return m.ID }

type comment struct{ ID uuid.UUID }

func (m comment) CorrelationID() uuid.UUID { return m.ID }

type resolve struct{ ID uuid.UUID }

func (m resolve) CorrelationID() uuid.UUID { return m.ID }

func newTicket(msg saga.Message) *ticket {
	return &ticket{ID: msg.CorrelationID()}
}

var ticketPipe = saga.PipeFunc[*ticket](func(ctx context.Context, cc *saga.ConsumeContext[*ticket]) error {
	switch m := cc.Message().(type) {
	case openTicket:
		cc.Saga().Title = m.Title
	case comment:
		cc.Saga().Comments++
	case resolve:
		return cc.SetCompleted(ctx)
	}
	return nil
})

func setupTestStore(t *testing.T) *Store[*ticket] {
	store, err := Open[*ticket](filepath.Join(t.TempDir(), "sagas.db"), "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func connect(t *testing.T, store *Store[*ticket]) saga.Conn[*ticket] {
	t.Helper()
	c, err := store.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpen(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := Open[*ticket](filepath.Join(t.TempDir(), "sagas.db"), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})

	t.Run("rejects unwritable path", func(t *testing.T) {
		_, err := Open[*ticket](filepath.Join(t.TempDir(), "missing", "sagas.db"), "test-ns")
		assert.Error(t, err)
	})

	t.Run("reports backend", func(t *testing.T) {
		store := setupTestStore(t)
		assert.Equal(t, "bolt", store.Backend())
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestGateway(t *testing.T) {
	store := setupTestStore(t)
	c := connect(t, store)
	ctx := context.Background()
	id := uuid.New()

	t.Run("load before anything is stored", func(t *testing.T) {
		inst, found, err := c.Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, inst)
	})

	t.Run("try insert", func(t *testing.T) {
		inserted, err := c.TryInsert(ctx, &ticket{ID: id, Title: "first"})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = c.TryInsert(ctx, &ticket{ID: id, Title: "second"})
		require.NoError(t, err)
		assert.False(t, inserted)

		loaded, found, err := c.Load(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "first", loaded.Title)
	})

	t.Run("store keeps the version outside the instance data", func(t *testing.T) {
		require.NoError(t, c.Store(ctx, &ticket{ID: id, Title: "updated", Version: 5}))

		loaded, found, err := c.Load(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "updated", loaded.Title)
		assert.Equal(t, 5, loaded.Version)
	})

	t.Run("store if version", func(t *testing.T) {
		vg, ok := c.(saga.VersionedGateway[*ticket])
		require.True(t, ok)

		stored, err := vg.StoreIfVersion(ctx, &ticket{ID: id, Title: "stale", Version: 5}, 4)
		require.NoError(t, err)
		assert.False(t, stored)

		stored, err = vg.StoreIfVersion(ctx, &ticket{ID: id, Title: "fresh", Version: 6}, 5)
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = vg.StoreIfVersion(ctx, &ticket{ID: uuid.New(), Version: 1}, 0)
		require.NoError(t, err)
		assert.False(t, stored, "absent instance never matches")

		loaded, _, err := c.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "fresh", loaded.Title)
		assert.Equal(t, 6, loaded.Version)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, &ticket{ID: id}))
		_, found, err := c.Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, found)

		assert.NoError(t, c.Delete(ctx, &ticket{ID: id}), "deleting an absent instance is not an error")
	})
}

func TestClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("connection", func(t *testing.T) {
		store := setupTestStore(t)
		c, err := store.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		_, _, err = c.Load(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, c.Store(ctx, &ticket{ID: uuid.New()}), ErrClosed)
	})

	t.Run("store", func(t *testing.T) {
		store := setupTestStore(t)
		c := connect(t, store)
		require.NoError(t, store.Close())

		_, err := store.Connect(ctx)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, store.Ping(ctx), ErrClosed)

		_, _, err = c.Load(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("canceled context", func(t *testing.T) {
		store := setupTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.Connect(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sagas.db")
	ctx := context.Background()
	id := uuid.New()

	store, err := Open[*ticket](path, "test-ns")
	require.NoError(t, err)
	c, err := store.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, &ticket{ID: id, Title: "durable", Version: 2}))
	require.NoError(t, c.Close())
	require.NoError(t, store.Close())

	store, err = Open[*ticket](path, "test-ns")
	require.NoError(t, err)
	defer store.Close()

	loaded, found, err := connect(t, store).Load(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "durable", loaded.Title)
	assert.Equal(t, 2, loaded.Version)

	other, err := Open[*ticket](filepath.Join(t.TempDir(), "other.db"), "other-ns")
	require.NoError(t, err)
	defer other.Close()
	_, found, err = connect(t, other).Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	policy := saga.NewInitiatingPolicy(newTicket, true)

	t.Run("lifecycle", func(t *testing.T) {
		store := setupTestStore(t)
		repo, err := saga.NewRepository[*ticket](store, saga.WithAtomicVersionCheck())
		require.NoError(t, err)
		id := uuid.New()

		require.NoError(t, repo.Dispatch(ctx, openTicket{ID: id, Title: "broken build"}, policy, ticketPipe))
		require.NoError(t, repo.Dispatch(ctx, comment{ID: id}, policy, ticketPipe))

		inst, found, err := repo.GetSaga(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "broken build", inst.Title)
		assert.Equal(t, 1, inst.Comments)
		assert.Equal(t, 2, inst.Version, "pre-inserted at 0, then two updates")

		require.NoError(t, repo.Dispatch(ctx, resolve{ID: id}, policy, ticketPipe))
		_, found, err = repo.GetSaga(ctx, id)
		require.NoError(t, err)
		assert.False(t, found)

		assert.Equal(t, "bolt", repo.Probe().Persistence)
	})

	t.Run("stale update conflicts", func(t *testing.T) {
		store := setupTestStore(t)
		repo, err := saga.NewRepository[*ticket](store, saga.WithVersioning())
		require.NoError(t, err)
		id := uuid.New()

		require.NoError(t, repo.Dispatch(ctx, openTicket{ID: id}, policy, ticketPipe))

		interleaved := saga.PipeFunc[*ticket](func(ctx context.Context, cc *saga.ConsumeContext[*ticket]) error {
			return repo.Dispatch(ctx, comment{ID: id}, policy, ticketPipe)
		})
		err = repo.Dispatch(ctx, comment{ID: id}, policy, interleaved)
		assert.True(t, saga.IsConcurrencyConflict(err))
	})

	t.Run("concurrent dispatch", func(t *testing.T) {
		store := setupTestStore(t)
		repo, err := saga.NewRepository[*ticket](store)
		require.NoError(t, err)
		id := uuid.New()

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				return repo.Dispatch(gctx, openTicket{ID: id, Title: "race"}, policy, ticketPipe)
			})
		}
		require.NoError(t, g.Wait())

		inst, found, err := repo.GetSaga(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "race", inst.Title)
	})
}
