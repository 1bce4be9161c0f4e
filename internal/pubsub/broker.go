package pubsub

import (
	"context"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscription channel capacity. Delivery is
// non-blocking: a subscriber that falls this far behind loses events rather
// than stalling the catalog operation that published them.
const subscriberBuffer = 64

// subscription pairs a delivery channel with an optional event type filter.
// A nil filter receives every event.
type subscription[T any] struct {
	ch     chan Event[T]
	filter map[EventType]struct{}
}

func (s *subscription[T]) wants(eventType EventType) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[eventType]
	return ok
}

// Broker fans catalog change events out to subscribers. The registry file,
// not the broker, is the source of truth, so delivery is strictly
// best-effort: Publish never blocks and never fails.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[*subscription[T]]struct{}
	closed bool
}

// NewBroker creates an open broker with no subscribers.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[*subscription[T]]struct{})}
}

// Subscribe returns a channel receiving events of the given types, or every
// event when no types are named. The subscription ends and the channel
// closes when ctx is cancelled or the broker is closed; subscribing to a
// closed broker yields an already-closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context, types ...EventType) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := &subscription[T]{ch: make(chan Event[T], subscriberBuffer)}
	if len(types) > 0 {
		sub.filter = make(map[EventType]struct{}, len(types))
		for _, eventType := range types {
			sub.filter[eventType] = struct{}{}
		}
	}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
	}()

	return sub.ch
}

// Publish delivers an event to every subscription whose filter matches.
// Subscribers with a full channel are skipped, not waited on.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for sub := range b.subs {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close shuts the broker down and closes every subscription channel.
// Publish and Subscribe on a closed broker are safe no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
