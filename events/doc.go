// Package events carries the storefront's cross-component signals as typed
// values instead of named strings.
//
// # Components
//
//   - [Kind] and [Event]: LoggedIn, LoggedOut and OrderPlaced.
//   - [Bus]: synchronous observer fan-out with [Subscription.Unsubscribe].
//   - [Dispatcher]: buffered async relay to a [Sink] for an event trail.
//
// # Architecture boundaries
//
// The session manager and the client decide when to publish. Subscribers
// react (for example by refetching the cart) without holding references to
// each other.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import the storefront root package.
package events
