// Package rate enforces per-identifier cooldowns, such as the minimum gap
// between two OTP requests for the same phone number.
//
// # Window semantics
//
// A cooldown is a single key with a TTL. Acquire succeeds only when no key
// exists and creates one that lives for the window. Key prefix:
//   - otp: OTP requests per phone number
//
// # What this package must NOT do
//
//   - Count attempts. One acquisition per window is the whole policy.
//   - Decide what a cooldown protects; callers name the identifier.
package rate
