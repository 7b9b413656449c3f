package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType identifies a lifecycle change of a stored instance.
type EventType string

const (
	// EventInserted is published when TryInsert creates a record.
	EventInserted EventType = "inserted"
	// EventStored is published when an instance is written.
	EventStored EventType = "stored"
	// EventRemoved is published when an instance is deleted, normally on completion.
	EventRemoved EventType = "removed"
)

// Event describes one lifecycle change. Events carry no instance data.
type Event struct {
	Type          EventType `json:"type"`
	SagaType      string    `json:"saga_type"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	Version       int       `json:"version"`
	AtMs          int64     `json:"at_ms"`
}

// publish sends an event if events are enabled. The write has already
// succeeded, so failures are logged and not returned.
func (s *Store[T]) publish(ctx context.Context, c *redis.Conn, typ EventType, inst T) {
	if !s.opts.events {
		return
	}

	payload, err := json.Marshal(Event{
		Type:          typ,
		SagaType:      s.sagaType,
		CorrelationID: inst.CorrelationID(),
		Version:       versionOf(inst),
		AtMs:          s.opts.now().UnixMilli(),
	})
	if err != nil {
		s.opts.logger.Warn("failed to marshal saga event", "error", err)
		return
	}

	channel := EventsChannel(s.namespace, s.sagaType)
	if err := c.Publish(ctx, channel, payload).Err(); err != nil {
		s.opts.logger.Warn("failed to publish saga event",
			"channel", channel,
			"correlation_id", inst.CorrelationID(),
			"error", err)
	}
}

// Subscription represents an active Pub/Sub subscription to lifecycle events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of lifecycle events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to lifecycle events for this store's saga type.
// Events are only published by stores created with WithEvents.
// Delivery is at-most-once: a slow subscriber may miss events.
func (s *Store[T]) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, EventsChannel(s.namespace, s.sagaType))

	// Wait for confirmation so that no event published after Subscribe
	// returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to saga events: %w", err)
	}

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal saga event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
