package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Candidate is one Redis address tried by [Client.Connect].
type Candidate struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Dialer opens and probes a Redis connection for a candidate. It must return
// a client that has already answered a liveness probe.
type Dialer func(ctx context.Context, c Candidate) (redis.UniversalClient, error)

// Option configures a [Client].
type Option func(*options)

type options struct {
	candidates      []Candidate
	connectTimeout  time.Duration
	cleanupInterval time.Duration
	dialer          Dialer
	now             func() time.Time
	logger          *slog.Logger
}

func defaultOptions() *options {
	return &options{
		connectTimeout:  2 * time.Second,
		cleanupInterval: time.Minute,
		dialer:          DialRedis,
		now:             time.Now,
		logger:          slog.New(slog.DiscardHandler),
	}
}

// WithCandidates sets the Redis addresses tried, in order, by Connect.
// With no candidates the client goes straight to fallback.
func WithCandidates(c ...Candidate) Option {
	return func(o *options) {
		o.candidates = append([]Candidate(nil), c...)
	}
}

// WithConnectTimeout bounds each candidate attempt.
// Default: 2 seconds
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithCleanupInterval sets how often the fallback map drops expired entries.
// Zero disables the janitor; expired entries are still removed on read.
// Default: 1 minute
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithDialer replaces the Redis dialer. Tests use it to drive the
// connection state machine without a network.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithClock sets the clock used by the fallback map.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger for connection transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ViewOption configures a typed [Store].
type ViewOption func(*viewOptions)

type viewOptions struct {
	prefix string
}

// WithPrefix namespaces every key of a [Store] as "{prefix}:{key}".
func WithPrefix(prefix string) ViewOption {
	return func(o *viewOptions) {
		o.prefix = prefix
	}
}
