package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event variant.
type Kind uint8

const (
	// KindLoggedIn fires after a login establishes a session.
	KindLoggedIn Kind = iota + 1
	// KindLoggedOut fires once when a session is torn down.
	KindLoggedOut
	// KindOrderPlaced fires after payment verification succeeds.
	KindOrderPlaced
)

func (k Kind) String() string {
	switch k {
	case KindLoggedIn:
		return "logged_in"
	case KindLoggedOut:
		return "logged_out"
	case KindOrderPlaced:
		return "order_placed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LogoutReason explains a LoggedOut event.
type LogoutReason string

const (
	ReasonUserLogout    LogoutReason = "logout"
	ReasonRefreshFailed LogoutReason = "refresh_failed"
	ReasonTokenExpired  LogoutReason = "token_expired"
)

// Event is a single signal.
type Event struct {
	ID        string       `json:"id"`
	Kind      Kind         `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	UserID    string       `json:"user_id,omitempty"`
	OrderID   string       `json:"order_id,omitempty"`
	Reason    LogoutReason `json:"reason,omitempty"`
}

// LoggedIn builds a KindLoggedIn event.
func LoggedIn(userID string) Event {
	return newEvent(KindLoggedIn, func(e *Event) { e.UserID = userID })
}

// LoggedOut builds a KindLoggedOut event.
func LoggedOut(userID string, reason LogoutReason) Event {
	return newEvent(KindLoggedOut, func(e *Event) {
		e.UserID = userID
		e.Reason = reason
	})
}

// OrderPlaced builds a KindOrderPlaced event.
func OrderPlaced(userID, orderID string) Event {
	return newEvent(KindOrderPlaced, func(e *Event) {
		e.UserID = userID
		e.OrderID = orderID
	})
}

func newEvent(kind Kind, fill func(*Event)) Event {
	e := Event{ID: uuid.NewString(), Kind: kind, Timestamp: time.Now().UTC()}
	fill(&e)
	return e
}

// Sink receives events copied off the bus.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(data, '\n'))
}
