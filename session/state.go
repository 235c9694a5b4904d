package session

import (
	"context"
	"errors"
	"time"
)

// State is the session's position in the token lifecycle.
type State int32

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshing
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

var (
	// ErrRefreshFailed wraps every refresh failure. The session has been torn
	// down when it is returned.
	ErrRefreshFailed = errors.New("session: refresh failed")
	// ErrSessionReplaced is returned when a refresh finishes after the session
	// it started from was torn down or replaced by a new login.
	ErrSessionReplaced = errors.New("session: replaced during refresh")
)

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the signed-in user as reported by the auth endpoints.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phoneNo,omitempty"`
}

// Refresher exchanges a refresh token for a new pair. An empty
// RefreshToken in the result means the server kept the old one.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (Pair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (Pair, error)

func (f RefresherFunc) RefreshTokens(ctx context.Context, refreshToken string) (Pair, error) {
	return f(ctx, refreshToken)
}

// Config tunes the Manager.
type Config struct {
	// RefreshMargin is how long before expiry the proactive refresh fires.
	RefreshMargin time.Duration
	// RefreshTimeout bounds a single refresh exchange.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the storefront's timings.
func DefaultConfig() Config {
	return Config{
		RefreshMargin:  60 * time.Second,
		RefreshTimeout: 15 * time.Second,
	}
}

// Hooks observe lifecycle transitions. Nil funcs are skipped.
type Hooks struct {
	TimerArmed       func(delay time.Duration)
	RefreshSucceeded func()
	RefreshFailed    func(kind string, err error)
	TornDown         func(reason string)
}
