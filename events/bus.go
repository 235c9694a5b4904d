package events

import (
	"context"
	"sort"
	"sync"
)

// Handler reacts to an event. Handlers run on the publisher's goroutine and
// must not block for long.
type Handler func(ctx context.Context, event Event)

// Publisher is the publishing side of a Bus.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus fans events out to subscribers in subscription order and copies them
// to an optional Dispatcher.
type Bus struct {
	mu         sync.RWMutex
	nextID     uint64
	subs       map[uint64]subscriber
	dispatcher *Dispatcher
}

type subscriber struct {
	id      uint64
	kinds   map[Kind]struct{}
	handler Handler
}

// Subscription is returned by Subscribe.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// NewBus returns a Bus. dispatcher may be nil.
func NewBus(dispatcher *Dispatcher) *Bus {
	return &Bus{
		subs:       make(map[uint64]subscriber),
		dispatcher: dispatcher,
	}
}

// Subscribe registers handler for kinds, or for every kind when none are
// given.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := subscriber{id: b.nextID, handler: handler}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	b.subs[s.id] = s
	return &Subscription{bus: b, id: s.id}
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside a handler.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

// Publish delivers event to matching subscribers and then to the dispatcher.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	matched := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kinds != nil {
			if _, ok := s.kinds[event.Kind]; !ok {
				continue
			}
		}
		matched = append(matched, s)
	}
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	for _, s := range matched {
		s.handler(ctx, event)
	}

	b.dispatcher.Emit(ctx, event)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops the dispatcher, flushing buffered events.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.dispatcher.Close()
}

// Dropped reports events the dispatcher discarded.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dispatcher.Dropped()
}
