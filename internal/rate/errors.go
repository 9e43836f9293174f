package rate

import "errors"

var (
	// ErrRateLimited is returned with a rejecting [Decision].
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps any failure reading or writing the counter.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrInvalidPolicy is returned for a non-positive limit or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
