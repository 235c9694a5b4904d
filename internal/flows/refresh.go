package flows

import (
	"context"
	"errors"
	"strings"
)

// RefreshFailureKind classifies refresh flow failures for the session manager.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissingToken
	RefreshFailureLoad
	RefreshFailureRejected
	RefreshFailureExchange
	RefreshFailureMalformed
	RefreshFailurePersist
)

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureMissingToken:
		return "missing_refresh_token"
	case RefreshFailureLoad:
		return "load"
	case RefreshFailureRejected:
		return "rejected"
	case RefreshFailureExchange:
		return "exchange"
	case RefreshFailureMalformed:
		return "malformed_access_token"
	case RefreshFailurePersist:
		return "persist"
	default:
		return "unknown"
	}
}

// ErrMissingRefreshToken is returned when no refresh token is stored.
var ErrMissingRefreshToken = errors.New("no refresh token stored")

// ErrMalformedAccessToken is returned when the refresh endpoint hands back an
// access token that is undecodable or already expired.
var ErrMalformedAccessToken = errors.New("refresh returned an unusable access token")

// RefreshResult carries either the new pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	AccessToken  string
	RefreshToken string
	// KeptRefreshToken is set when the server omitted a new refresh token and
	// the previous one was written back alongside the new access token.
	KeptRefreshToken bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	LoadRefreshToken func(context.Context) (string, error)
	Exchange         func(ctx context.Context, refreshToken string) (access, refresh string, err error)
	// IsRejected reports whether an Exchange error is the server refusing
	// the refresh token, as opposed to a transport failure.
	IsRejected func(error) bool
	IsExpired  func(token string) bool
	// SavePair must write both tokens in one atomic store operation.
	SavePair func(ctx context.Context, access, refresh string) error
	Warn     func(string, ...any)
}

// RunRefresh exchanges the stored refresh token for a new pair and persists
// it. It never writes a partial pair.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	current, err := deps.LoadRefreshToken(ctx)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureLoad, Err: err}
	}
	current = strings.TrimSpace(current)
	if current == "" {
		return RefreshResult{Failure: RefreshFailureMissingToken, Err: ErrMissingRefreshToken}
	}

	access, next, err := deps.Exchange(ctx, current)
	if err != nil {
		if deps.IsRejected != nil && deps.IsRejected(err) {
			return RefreshResult{Failure: RefreshFailureRejected, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureExchange, Err: err}
	}

	if deps.IsExpired(access) {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: ErrMalformedAccessToken}
	}

	kept := false
	if strings.TrimSpace(next) == "" {
		next = current
		kept = true
		if deps.Warn != nil {
			deps.Warn("storefront: refresh response carried no refresh token, keeping the previous one")
		}
	}

	if err := deps.SavePair(ctx, access, next); err != nil {
		return RefreshResult{Failure: RefreshFailurePersist, Err: err}
	}

	return RefreshResult{
		AccessToken:      access,
		RefreshToken:     next,
		KeptRefreshToken: kept,
	}
}
