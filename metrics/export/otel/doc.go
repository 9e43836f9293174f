// Package otel publishes admission engine metrics as OpenTelemetry
// observable instruments.
//
// [New] registers one Int64ObservableCounter per engine counter, one
// Int64ObservableGauge per cumulative latency bucket, and a cms_store_state
// gauge carrying a "state" attribute. A single callback reads the engine
// snapshot on each collection. The caller owns the MeterProvider.
package otel
