// Package session owns the client's token pair and its lifecycle: proactive
// refresh before expiry, reactive refresh on demand, and teardown on
// irrecoverable failure.
//
// # State machine
//
//	ANONYMOUS     --(login)------------------> AUTHENTICATED
//	AUTHENTICATED --(timer or 401)-----------> REFRESHING
//	REFRESHING    --(refresh ok)-------------> AUTHENTICATED (timer rearmed)
//	REFRESHING    --(refresh fails)----------> EXPIRED --(teardown)--> ANONYMOUS
//	AUTHENTICATED --(logout or expired use)--> ANONYMOUS
//
// # Architecture boundaries
//
// The [Manager] is the only reader and writer of the token entries in the
// persisted store. Everything else asks it for the current token. It does
// not speak HTTP; the refresh exchange is supplied as a [Refresher].
//
// # What this package must NOT do
//
//   - Hand out an expired access token.
//   - Write one token of a pair without the other.
//   - Emit more than one LoggedOut per session.
package session
