package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("store: entry not found")

	// ErrUnavailable is returned when the Redis backend fails after a
	// successful connect.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrClosed is returned when an operation is attempted on a closed client.
	ErrClosed = errors.New("store: closed")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("store: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("store: failed to unmarshal value")

	// ErrHealthcheckFailed is returned by the closure from [Healthcheck].
	ErrHealthcheckFailed = errors.New("store: healthcheck failed")
)
