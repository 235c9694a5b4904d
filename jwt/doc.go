// Package jwt reads the expiry claim of storefront access tokens on the
// client side and issues signed tokens for the in-process fake backend.
//
// # Architecture boundaries
//
// Decoding never verifies signatures. The client does not hold the server
// key; it only needs the exp claim to decide whether a token is still worth
// attaching. Verification lives in [Issuer] and is used by the fake backend.
//
// # What this package must NOT do
//
//   - Treat an undecodable token as live.
//   - Store decoded claims; callers derive them on demand.
package jwt
