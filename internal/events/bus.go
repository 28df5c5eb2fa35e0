package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Bus is an in-process publish/subscribe event bus. Handlers are invoked
// synchronously on the emitting goroutine, so they must not block; slow
// consumers should hand events off to a buffered channel.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]*subscription
	log         zerolog.Logger
}

type subscription struct {
	handler func(*Event)
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]*subscription),
		log:         log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe function. The handler is called for every matching event
// until the unsubscribe function is invoked.
func (b *Bus) Subscribe(eventType EventType, handler func(*Event)) func() {
	sub := &subscription{handler: handler}

	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s == sub {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Emit publishes an event to all subscribers of its type
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	subs := make([]*subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// SubscriberCount returns the number of handlers registered for an event type
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
