package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureValidation
	LoginFailureCall
	LoginFailureMissingTokens
	LoginFailureMalformedToken
	LoginFailureEstablish
)

// ErrMissingTokens is returned when a successful auth response lacks either
// token.
var ErrMissingTokens = errors.New("auth response is missing tokens")

// LoginPayload is the flow-local shape of an auth response.
type LoginPayload struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Role         string
	Name         string
	Email        string
	Phone        string
}

// LoginResult carries either the payload or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Payload LoginPayload
}

// LoginDeps captures login flow dependencies. Password, login OTP and
// registration OTP verification share this flow; only Validate and Call
// differ.
type LoginDeps struct {
	Validate  func() error
	Call      func(context.Context) (LoginPayload, error)
	IsExpired func(token string) bool
	// Establish stores the pair and identity and moves the session to
	// authenticated.
	Establish func(context.Context, LoginPayload) error
}

// RunLogin validates input, performs the auth call and establishes the
// session from its tokens.
func RunLogin(ctx context.Context, deps LoginDeps) LoginResult {
	if deps.Validate != nil {
		if err := deps.Validate(); err != nil {
			return LoginResult{Failure: LoginFailureValidation, Err: err}
		}
	}

	payload, err := deps.Call(ctx)
	if err != nil {
		return LoginResult{Failure: LoginFailureCall, Err: err}
	}

	if strings.TrimSpace(payload.AccessToken) == "" || strings.TrimSpace(payload.RefreshToken) == "" {
		return LoginResult{Failure: LoginFailureMissingTokens, Err: ErrMissingTokens, Payload: payload}
	}
	if deps.IsExpired(payload.AccessToken) {
		return LoginResult{Failure: LoginFailureMalformedToken, Err: ErrMalformedAccessToken, Payload: payload}
	}

	if err := deps.Establish(ctx, payload); err != nil {
		return LoginResult{Failure: LoginFailureEstablish, Err: err, Payload: payload}
	}

	return LoginResult{Payload: payload}
}
