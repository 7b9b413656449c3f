package saga

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// testSaga is a versioned saga used throughout the package tests.
type testSaga struct {
	ID        uuid.UUID
	Name      string
	Initiated bool
	Updates   int
	Version   int
}

func (s *testSaga) CorrelationID() uuid.UUID { return s.ID }
func (s *testSaga) CurrentVersion() int      { return s.Version }
func (s *testSaga) SetVersion(v int)         { s.Version = v }

// plainSaga does not implement Versioned.
type plainSaga struct {
	ID uuid.UUID
}

func (s *plainSaga) CorrelationID() uuid.UUID { return s.ID }

type initiate struct {
	ID   uuid.UUID
	Name string
}

func (m initiate) CorrelationID() uuid.UUID { return m.ID }

type update struct{ ID uuid.UUID }

func (m update) CorrelationID() uuid.UUID { return m.ID }

type complete struct{ ID uuid.UUID }

func (m complete) CorrelationID() uuid.UUID { return m.ID }

func newTestSaga(msg Message) *testSaga {
	return &testSaga{ID: msg.CorrelationID()}
}

// testPipe applies each message type to the saga the way a consumer would.
var testPipe = PipeFunc[*testSaga](func(ctx context.Context, cc *ConsumeContext[*testSaga]) error {
	switch m := cc.Message().(type) {
	case initiate:
		cc.Saga().Initiated = true
		cc.Saga().Name = m.Name
	case update:
		cc.Saga().Updates++
	case complete:
		return cc.SetCompleted(ctx)
	}
	return nil
})

// memStore is an in-memory gateway that copies instances on the way in and
// out, counts operations and can inject failures.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]testSaga

	connects, closes           int
	loads, stores, deletes     int
	inserts, conditionalStores int

	loadErr  error
	storeErr error
	closeErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]testSaga)}
}

func (m *memStore) Backend() string { return "memory" }

func (m *memStore) Connect(ctx context.Context) (Conn[*testSaga], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return &memConn{store: m}, nil
}

func (m *memStore) put(s *testSaga) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.ID] = *s
}

func (m *memStore) get(id uuid.UUID) (*testSaga, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[id]
	return &s, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memStore) mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores + m.deletes + m.inserts + m.conditionalStores
}

type memConn struct {
	store  *memStore
	closed bool
}

var errConnClosed = errors.New("connection closed")

func (c *memConn) Load(ctx context.Context, id uuid.UUID) (*testSaga, bool, error) {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.closed {
		return nil, false, errConnClosed
	}
	m.loads++
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	s, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memConn) Store(ctx context.Context, inst *testSaga) error {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.records[inst.ID] = *inst
	return nil
}

func (c *memConn) Delete(ctx context.Context, inst *testSaga) error {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	m.deletes++
	delete(m.records, inst.ID)
	return nil
}

func (c *memConn) TryInsert(ctx context.Context, inst *testSaga) (bool, error) {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.closed {
		return false, errConnClosed
	}
	m.inserts++
	if _, ok := m.records[inst.ID]; ok {
		return false, nil
	}
	m.records[inst.ID] = *inst
	return true, nil
}

func (c *memConn) StoreIfVersion(ctx context.Context, inst *testSaga, expected int) (bool, error) {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.closed {
		return false, errConnClosed
	}
	m.conditionalStores++
	current, ok := m.records[inst.ID]
	if !ok || current.Version != expected {
		return false, nil
	}
	m.records[inst.ID] = *inst
	return true, nil
}

func (c *memConn) Close() error {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	c.closed = true
	m.closes++
	return m.closeErr
}

// plainConnector adapts memStore to plainSaga for construction tests.
type plainConnector struct{}

func (plainConnector) Backend() string { return "memory" }

func (plainConnector) Connect(context.Context) (Conn[*plainSaga], error) {
	return nil, errors.New("not implemented")
}
