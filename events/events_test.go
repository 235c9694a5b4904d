package events

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBusDeliversOnlySubscribedKinds(t *testing.T) {
	bus := NewBus(nil)

	var logins, all []Kind
	bus.Subscribe(func(_ context.Context, e Event) { logins = append(logins, e.Kind) }, KindLoggedIn)
	bus.Subscribe(func(_ context.Context, e Event) { all = append(all, e.Kind) })

	bus.Publish(context.Background(), LoggedIn("u1"))
	bus.Publish(context.Background(), LoggedOut("u1", ReasonUserLogout))
	bus.Publish(context.Background(), OrderPlaced("u1", "ord-9"))

	if len(logins) != 1 || logins[0] != KindLoggedIn {
		t.Fatalf("unexpected login deliveries: %v", logins)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 deliveries to wildcard subscriber, got %v", all)
	}
}

func TestBusSubscriptionOrderAndUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	first := bus.Subscribe(func(context.Context, Event) { order = append(order, "first") })
	bus.Subscribe(func(context.Context, Event) { order = append(order, "second") })

	bus.Publish(context.Background(), LoggedIn("u"))
	first.Unsubscribe()
	first.Unsubscribe()
	bus.Publish(context.Background(), LoggedIn("u"))

	want := []string{"first", "second", "second"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected order %v, want %v", order, want)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected 1 live subscription, got %d", bus.Len())
	}
}

func TestBusUnsubscribeInsideHandler(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	var sub *Subscription
	sub = bus.Subscribe(func(context.Context, Event) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(context.Background(), LoggedIn("u"))
	bus.Publish(context.Background(), LoggedIn("u"))
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestBusCopiesToDispatcher(t *testing.T) {
	sink := NewChannelSink(4)
	bus := NewBus(NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 4}, sink))
	defer bus.Close()

	bus.Publish(context.Background(), OrderPlaced("u1", "ord-1"))

	select {
	case e := <-sink.Events():
		if e.Kind != KindOrderPlaced || e.OrderID != "ord-1" {
			t.Fatalf("unexpected event %+v", e)
		}
		if e.ID == "" {
			t.Fatal("expected event id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected event to reach sink")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), LoggedIn("u"))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), LoggedIn("e1"))
	d.Emit(context.Background(), LoggedIn("e2"))

	start := time.Now()
	d.Emit(context.Background(), LoggedIn("e3"))
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestDispatcherBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), LoggedIn("e1"))
	d.Emit(context.Background(), LoggedIn("e2"))

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), LoggedIn("e3"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestDispatcherCloseDrainsAndIsIdempotent(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), LoggedIn("u"))
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), LoggedIn("late"))

	if got := sink.count.Load(); got != 5 {
		t.Fatalf("expected 5 drained events, got %d", got)
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), LoggedOut("u1", ReasonRefreshFailed))

	out := buf.String()
	if !strings.Contains(out, `"kind":"logged_out"`) {
		t.Fatalf("expected kind name in %q", out)
	}
	if !strings.Contains(out, `"reason":"refresh_failed"`) {
		t.Fatalf("expected reason in %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
}
