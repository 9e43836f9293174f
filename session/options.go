package session

import "time"

// Option configures a [Cache].
type Option func(*options)

type options struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func defaultOptions() *options {
	return &options{
		ttl:        5 * time.Minute,
		maxEntries: 10000,
		now:        time.Now,
	}
}

// WithTTL sets the lifetime of entries stored without an explicit TTL.
// Default: 5 minutes
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithMaxEntries bounds the cache; the least recently used entry is evicted
// when full. Zero means unbounded.
// Default: 10000
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
