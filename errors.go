package storefront

import (
	"errors"

	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
)

var (
	// ErrUnauthorized is returned when the API refused a request after the
	// refresh-and-retry path ran out. A 401 *APIError also matches it.
	ErrUnauthorized = transport.ErrUnauthorized
	// ErrTimeout is returned when the per-request timeout fired.
	ErrTimeout = transport.ErrTimeout
	// ErrNetwork is returned when no response arrived at all.
	ErrNetwork = transport.ErrNetwork
	// ErrValidation matches every *ValidationError.
	ErrValidation = validate.ErrInvalid

	ErrNotLoggedIn    = errors.New("Please log in to continue")
	ErrSessionExpired = errors.New("Session expired. Please log in again")
	ErrAlreadyInCart  = errors.New("Item already exists in cart")
	ErrEmptyCart      = errors.New("No items in cart")
	// ErrNotRegistered is returned when no account exists for the phone or email.
	ErrNotRegistered = errors.New("Not registered. Please sign up first")
	// ErrOTPCooldown is returned while an OTP resend is not yet allowed. It
	// matches the rate package's ErrRateLimited.
	ErrOTPCooldown = rate.ErrRateLimited

	ErrClientClosed = errors.New("storefront client closed")
)

// APIError is a non-success response from the storefront API.
type APIError = transport.APIError

// ValidationError reports invalid input. It is returned before any request
// is sent.
type ValidationError = validate.Error

// Messages shown when a request fails without a usable server message.
const (
	msgSessionExpired = "Session expired. Please log in again"
	msgTimeout        = "Request timeout. Please try again"
	msgNetwork        = "Network error. Please check your connection"
)

// UserMessage turns err into the text shown to the user. Server messages are
// passed through verbatim; otherwise fallback is used.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}

	switch {
	case errors.Is(err, ErrNotLoggedIn),
		errors.Is(err, ErrAlreadyInCart),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrNotRegistered):
		return sentinelMessage(err)
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrUnauthorized):
		return msgSessionExpired
	case errors.Is(err, ErrTimeout):
		return msgTimeout
	case errors.Is(err, ErrNetwork):
		return msgNetwork
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 403 {
			return msgSessionExpired
		}
		if msg := apiErr.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}

func sentinelMessage(err error) string {
	for _, s := range []error{ErrNotLoggedIn, ErrAlreadyInCart, ErrEmptyCart, ErrNotRegistered} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
