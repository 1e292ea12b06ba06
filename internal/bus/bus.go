package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus owned by a single client.
// Listeners run synchronously in registration order, so a client's events
// reach every listener in the order they were published. Channel
// subscriptions receive events whose kind starts with their namespace.
type Bus struct {
	mu        sync.RWMutex
	subs      map[int]*subscription
	listeners []*listener
	next      int
}

type subscription struct {
	namespace string
	ch        chan Event
}

type listener struct {
	id   int
	kind string
	fn   func(Event)
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish delivers evt to matching listeners, then to matching subscriptions.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	var matched []func(Event)
	for _, l := range b.listeners {
		if l.kind == evt.Kind {
			matched = append(matched, l.fn)
		}
	}
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
	b.mu.RUnlock()

	// Listeners run outside the lock so they may publish or unregister.
	for _, fn := range matched {
		fn(evt)
	}
}

// Listen registers fn for events of exactly the given kind.
// Returns the unregister function.
func (b *Bus) Listen(kind string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners = append(b.listeners, &listener{id: id, kind: kind, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Reset drops every listener and subscription.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.listeners = nil
	b.subs = make(map[int]*subscription)
	b.mu.Unlock()
}
