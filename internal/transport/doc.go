// Package transport is the request pipeline between the storefront client
// and the REST API: token attachment, client-side timeout, envelope
// decoding, and the single refresh-and-retry on 401.
//
// # Architecture boundaries
//
// The pipeline reads the token from a [TokenSource] for every attempt and
// never caches it. Whether a session exists, and what happens when a token
// has expired, is the source's decision.
//
// # What this package must NOT do
//
//   - Attach an expired token.
//   - Retry a request more than once after a refresh.
//   - Interpret business payloads beyond the response envelope.
package transport
