package rate

import "errors"

var (
	// ErrRateLimited is returned by Acquire while a cooldown is running.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
