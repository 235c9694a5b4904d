// Package storefront is a client for the agricultural storefront API: catalog
// browsing, cart, checkout with an external payment overlay, orders and a
// local wishlist.
//
// The package is safe for concurrent use after construction through
// [Builder.Build].
//
// # Architecture boundaries
//
// storefront is the public surface. It exposes [Client], [Builder], [Config]
// and value types (Product, Cart, Order, ...). Token lifecycle lives in the
// session package, the authenticated request pipeline under
// internal/transport, and persisted state in storage. Events are published
// on an events.Bus and user-facing messages go to a notify.Notifier.
//
// # Session contract
//
//   - An expired access token is never sent. A request made with one goes
//     out without Authorization.
//   - A 401 on an authenticated request triggers at most one refresh and
//     one retry. Concurrent 401s share a single refresh call.
//   - Teardown clears the persisted session and publishes LoggedOut exactly
//     once.
//
// # What this package must NOT do
//
//   - Send a request from an operation whose input failed validation.
//   - Send a cart or order request without a usable session.
//   - Import any sub-package that re-imports storefront (no import cycles).
package storefront
