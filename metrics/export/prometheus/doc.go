// Package prometheus exposes admission engine metrics through
// client_golang.
//
// [Collector] reads [admission.Engine.MetricsSnapshot] on every scrape. It
// reports counters as cms_*_total, the Authenticate latency histogram as
// cms_authenticate_latency_seconds and the store connection state as the
// cms_store_state gauge. Nothing is registered globally. Use
// [Collector.Handler] or register the collector yourself.
package prometheus
