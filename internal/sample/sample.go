// Package sample defines the saga the sagastore CLI drives: a named
// instance that is initiated, observed any number of times, then completed.
package sample

import (
	"context"
	"fmt"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/google/uuid"
)

// SimpleSaga is the sample saga instance.
type SimpleSaga struct {
	ID        uuid.UUID `json:"correlation_id"`
	Name      string    `json:"name"`
	Initiated bool      `json:"initiated"`
	Observed  int       `json:"observed"`
	Version   int       `json:"version"`
}

func (s *SimpleSaga) CorrelationID() uuid.UUID { return s.ID }
func (s *SimpleSaga) CurrentVersion() int      { return s.Version }
func (s *SimpleSaga) SetVersion(v int)         { s.Version = v }

// Initiate creates the saga.
type Initiate struct {
	ID   uuid.UUID
	Name string
}

func (m Initiate) CorrelationID() uuid.UUID { return m.ID }

// Observe records activity on an existing saga and may rename it.
type Observe struct {
	ID   uuid.UUID
	Name string
}

func (m Observe) CorrelationID() uuid.UUID { return m.ID }

// Complete finishes the saga, removing it from the store.
type Complete struct {
	ID uuid.UUID
}

func (m Complete) CorrelationID() uuid.UUID { return m.ID }

// Message kinds accepted by NewMessage.
const (
	KindInitiate = "initiate"
	KindObserve  = "observe"
	KindComplete = "complete"
)

// NewMessage builds a message of the named kind.
func NewMessage(kind string, id uuid.UUID, name string) (saga.Message, error) {
	switch kind {
	case KindInitiate:
		return Initiate{ID: id, Name: name}, nil
	case KindObserve:
		return Observe{ID: id, Name: name}, nil
	case KindComplete:
		return Complete{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown message kind '%s' (must be '%s', '%s' or '%s')", kind, KindInitiate, KindObserve, KindComplete)
	}
}

// New creates an uninitiated saga for msg.
func New(msg saga.Message) *SimpleSaga {
	return &SimpleSaga{ID: msg.CorrelationID()}
}

// Policy creates sagas for Initiate messages only. Observe and Complete
// messages for unknown sagas are dropped, or rejected when strict.
type Policy struct {
	initiating *saga.InitiatingPolicy[*SimpleSaga]
	existing   *saga.ExistingOnlyPolicy[*SimpleSaga]
}

// NewPolicy returns the sample policy. With preInsert, Initiate messages
// insert the saga before looking it up.
func NewPolicy(preInsert, strict bool) *Policy {
	return &Policy{
		initiating: saga.NewInitiatingPolicy(New, preInsert),
		existing:   saga.NewExistingOnlyPolicy[*SimpleSaga](strict),
	}
}

func (p *Policy) route(msg saga.Message) saga.Policy[*SimpleSaga] {
	if _, ok := msg.(Initiate); ok {
		return p.initiating
	}
	return p.existing
}

func (p *Policy) PreInsert(ctx context.Context, msg saga.Message) (*SimpleSaga, bool) {
	return p.route(msg).PreInsert(ctx, msg)
}

func (p *Policy) Missing(ctx context.Context, msg saga.Message, next saga.Pipe[*SimpleSaga]) error {
	return p.route(msg).Missing(ctx, msg, next)
}

func (p *Policy) Existing(ctx context.Context, cc *saga.ConsumeContext[*SimpleSaga], next saga.Pipe[*SimpleSaga]) error {
	return p.route(cc.Message()).Existing(ctx, cc, next)
}

// Consumer applies sample messages to the saga.
var Consumer = saga.PipeFunc[*SimpleSaga](func(ctx context.Context, cc *saga.ConsumeContext[*SimpleSaga]) error {
	s := cc.Saga()

	switch m := cc.Message().(type) {
	case Initiate:
		s.Initiated = true
		if m.Name != "" {
			s.Name = m.Name
		}
	case Observe:
		s.Observed++
		if m.Name != "" {
			s.Name = m.Name
		}
	case Complete:
		return cc.SetCompleted(ctx)
	default:
		return fmt.Errorf("unexpected message %T", m)
	}

	return nil
})
