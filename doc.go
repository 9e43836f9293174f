// Package admission is the request-admission core of the CMS backend: it
// turns a session cookie into an authorized identity and meters requests
// against fixed rate-limit windows.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// admission is the public surface. It exposes [Engine], [Builder], [Config],
// [Identity] and the audit and metrics value types. Token signing lives in
// jwt, the identity cache in session, the volatile store in store, and the
// window counter in internal/rate. HTTP adapters live in middleware.
//
// # Error policy
//
// Authentication failures of every kind surface as [ErrUnauthorized]; the
// distinction between expired, tampered and unknown is logged, never
// returned. Rate-limit store failures surface as [ErrStoreUnavailable] with
// an allowing decision so callers fail open.
//
// # What this package must NOT do
//
//   - Write HTTP responses (middleware does).
//   - Fail closed on store errors in the rate-limit path.
//   - Grant access on any error in the authentication path.
package admission
