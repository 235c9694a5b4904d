// Package prometheus renders storefront client metrics in Prometheus text
// exposition format.
//
// Counter names are prefixed storefront_*_total; the single histogram is
// storefront_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
