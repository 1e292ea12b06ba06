package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Topic names an event kind whose payload is always of type T.
type Topic[T any] string

// Emit publishes payload under topic t.
func Emit[T any](b *Bus, t Topic[T], payload T) {
	if b == nil {
		return
	}
	b.Publish(Event{Kind: string(t), Timestamp: time.Now(), Payload: payload})
}

// On registers fn for every event published under topic t. Payloads of a
// different type are ignored. Returns the unregister function.
func On[T any](b *Bus, t Topic[T], fn func(T)) func() {
	return b.Listen(string(t), func(evt Event) {
		if payload, ok := evt.Payload.(T); ok {
			fn(payload)
		}
	})
}
