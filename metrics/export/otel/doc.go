// Package otel binds storefront client metrics to OpenTelemetry observable
// instruments.
//
// [New] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per latency bucket. One callback reads the client
// snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
