package bus

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("auth:", 10)
	defer unsub()

	b.Publish(Event{Kind: "auth:status", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "auth:status" {
			t.Errorf("got kind %q, want auth:status", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message:", 10)
	defer unsub()

	b.Publish(Event{Kind: "auth:status"})
	b.Publish(Event{Kind: "message:received"})

	select {
	case evt := <-ch:
		if evt.Kind != "message:received" {
			t.Errorf("got kind %q, want message:received", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("auth:", 10)
	unsub()

	b.Publish(Event{Kind: "auth:status"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test:", 1)
	defer unsub()

	b.Publish(Event{Kind: "test:one"})
	// Dropped: buffer is full.
	b.Publish(Event{Kind: "test:two"})

	evt := <-ch
	if evt.Kind != "test:one" {
		t.Errorf("got %q, want test:one", evt.Kind)
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	b := New()
	var got []string
	b.Listen("typing:updated", func(Event) { got = append(got, "first") })
	b.Listen("typing:updated", func(Event) { got = append(got, "second") })
	b.Listen("typing:other", func(Event) { got = append(got, "other") })

	b.Publish(Event{Kind: "typing:updated"})

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("got %v, want [first second]", got)
	}
}

func TestEmissionOrderPreserved(t *testing.T) {
	b := New()
	topic := Topic[int]("counter:tick")
	var got []int
	On(b, topic, func(n int) { got = append(got, n) })

	for i := range 50 {
		Emit(b, topic, i)
	}

	for i, n := range got {
		if n != i {
			t.Fatalf("got[%d] = %d, events were reordered", i, n)
		}
	}
	if len(got) != 50 {
		t.Errorf("got %d events, want 50", len(got))
	}
}

func TestOnIgnoresForeignPayload(t *testing.T) {
	b := New()
	calls := 0
	On(b, Topic[string]("x:y"), func(string) { calls++ })

	b.Publish(Event{Kind: "x:y", Payload: 42})
	if calls != 0 {
		t.Errorf("listener called %d times for wrong payload type", calls)
	}
}

func TestListenerUnregisterDuringDispatch(t *testing.T) {
	b := New()
	calls := 0
	var off func()
	off = b.Listen("a:b", func(Event) {
		calls++
		off()
	})

	b.Publish(Event{Kind: "a:b"})
	b.Publish(Event{Kind: "a:b"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReset(t *testing.T) {
	b := New()
	calls := 0
	b.Listen("a:b", func(Event) { calls++ })
	ch, _ := b.Subscribe("a:", 1)

	b.Reset()
	b.Publish(Event{Kind: "a:b"})

	if calls != 0 {
		t.Errorf("listener called after Reset")
	}
	select {
	case <-ch:
		t.Error("subscription received after Reset")
	default:
	}
}

func TestEmitNilBus(t *testing.T) {
	// Must not panic.
	Emit(nil, Topic[string]("a:b"), "x")
}
