// Package rate implements the fixed-window request counter behind the rate
// limit middleware.
//
// # Window semantics
//
// A window opens on the first hit for a key and lasts Policy.Window. The
// counter is stored as a [Window] in the volatile store under
// "ratelimit:{path}:{identifier}" with a TTL equal to the time left in the
// window, so the entry disappears when the window ends.
//
// # Concurrency
//
// Within one process the read-increment-write for a key is serialized by a
// striped mutex. Processes sharing Redis still race: the sequence is a plain
// GET followed by SET, and concurrent hits may overshoot the limit by up to
// the number of processes racing in the same instant.
//
// # What this package must NOT do
//
//   - Write HTTP headers or responses (the middleware does).
//   - Block on store failures: callers receive [ErrStoreUnavailable] and
//     decide to fail open.
package rate
