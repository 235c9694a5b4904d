package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized marks a request the server refused for authentication
	// after the refresh-and-retry path was exhausted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTimeout marks a request abandoned by the client-side timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrNetwork marks a request that got no HTTP response.
	ErrNetwork = errors.New("network error")
)

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	// Message is the server's message, surfaced to users verbatim.
	Message string
	// Fallback is shown when Message is empty.
	Fallback string
	Method   string
	Path     string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is makes a 401 APIError match ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// UserMessage returns Message, or Fallback when the server sent none.
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Fallback
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// WithFallback returns a copy of err with the fallback message set when err
// is an *APIError. Wrapped chains are returned unchanged.
func WithFallback(err error, fallback string) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return err
	}
	cp := *apiErr
	if cp.Fallback == "" {
		cp.Fallback = fallback
	}
	return &cp
}
