// Package eventbus is the synchronous in-process domain event publisher.
// Handlers run on the publishing goroutine, in subscription order, so state
// machine tests observe events deterministically.
package eventbus

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is any domain event. The type string doubles as the subscription
// topic.
type Event interface {
	EventType() string
}

type subscription struct {
	subscriber string
	eventType  string
	handler    func(Event)
}

// Bus fans events out to registered handlers. Safe for concurrent use;
// handlers must not block for long since publishing is synchronous.
type Bus struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs []subscription
}

// New creates an empty bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{log: log.With().Str("component", "eventbus").Logger()}
}

// Subscribe registers handler for all events of eventType under a
// subscriber key. One subscriber may hold many subscriptions; Unsubscribe
// removes them all at once.
func (b *Bus) Subscribe(subscriber, eventType string, handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{
		subscriber: subscriber,
		eventType:  eventType,
		handler:    handler,
	})
}

// Unsubscribe removes every subscription held by subscriber.
func (b *Bus) Unsubscribe(subscriber string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.subscriber != subscriber {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Publish delivers event synchronously to every matching handler.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	matching := make([]func(Event), 0, len(b.subs))
	for _, s := range b.subs {
		if s.eventType == event.EventType() {
			matching = append(matching, s.handler)
		}
	}
	b.mu.RUnlock()

	b.log.Debug().Str("event", event.EventType()).Int("handlers", len(matching)).Msg("publishing event")
	for _, handler := range matching {
		handler(event)
	}
}
