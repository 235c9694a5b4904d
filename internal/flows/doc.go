// Package flows contains pure-function orchestrators for the client's
// session-changing operations.
//
// Each flow function (RunLogin, RunRefresh) accepts a typed dependency
// struct and returns a result carrying either the outcome or a failure
// kind. Callers map failure kinds to their own errors, metrics and state
// transitions.
//
// # Architecture boundaries
//
// Flow functions coordinate the HTTP exchange, token decoding and the
// persisted store. They do NOT own any of these resources and they do not
// touch session state; the session manager and the client root do.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the storefront root or session packages.
//   - Perform I/O directly. All I/O goes through dependency funcs.
package flows
