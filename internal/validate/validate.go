// Package validate checks user input before it is sent anywhere.
package validate

import (
	"errors"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid matches every *Error.
var ErrInvalid = errors.New("validation failed")

// Error reports the first invalid field in user-facing wording.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Fail builds an *Error.
func Fail(field, message string) error {
	return &Error{Field: field, Message: message}
}

var (
	once sync.Once
	v    *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
	})
	return v
}

// Check reports whether value satisfies the validator tag expression.
func Check(value any, tag string) bool {
	return Validator().Var(value, tag) == nil
}

// Digits reports whether s is exactly n ASCII digits.
func Digits(s string, n int) bool {
	return Check(s, "len="+strconv.Itoa(n)+",number")
}
