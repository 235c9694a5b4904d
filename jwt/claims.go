package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptyToken is returned when decoding an empty token string.
	ErrEmptyToken = errors.New("empty token")
	// ErrMissingExpiry is returned when a token carries no exp claim.
	ErrMissingExpiry = errors.New("token has no exp claim")
)

// Claims is the claim set carried by storefront access tokens.
type Claims struct {
	UserID string `json:"uid,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses token without verifying its signature.
//
// Decode returns an error for empty strings and anything that is not a
// three-part JWS with JSON claims.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of token.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Decode(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether token should be treated as expired at now.
//
// Empty, malformed and exp-less tokens are expired. A token whose exp equals
// now is expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !exp.After(now)
}

// Remaining returns the time left until token expires. It is zero or
// negative for expired and undecodable tokens.
func Remaining(token string, now time.Time) time.Duration {
	exp, err := ExpiresAt(token)
	if err != nil {
		return 0
	}
	return exp.Sub(now)
}
