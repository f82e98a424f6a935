// Package bus provides the in-process publish/subscribe channel that
// decouples the ingestion side of the core from its consumers (the UI
// shell subscribes here to re-render on store mutations).
package bus

import "sync"

// Bus is an in-process publish/subscribe event bus with namespace
// prefix filtering. Delivery is non-blocking: a subscriber that falls
// behind loses events rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to every subscriber whose prefix matches
// event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if evt.Kind.In(sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber buffer full; drop rather than block.
			}
		}
	}
}

// Subscribe returns a channel receiving events whose kind starts with
// prefix, and a function that removes the subscription. An empty prefix
// receives everything.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
