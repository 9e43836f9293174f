package rate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/oriolmontcreus/cms-sub000/store"
)

// KeyPrefix namespaces every rate counter.
const KeyPrefix = "ratelimit"

// Window is the stored counter for one key.
type Window struct {
	Count   int64 `json:"count"`
	ResetAt int64 `json:"reset_at"` // unix milliseconds
}

// Policy is the budget for one route.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one [Limiter.Allow] call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64((d.RetryAfter + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// ResetUnix returns the window end in unix seconds, rounded up.
func (d Decision) ResetUnix() int64 {
	secs := d.ResetAt.Unix()
	if d.ResetAt.Nanosecond() > 0 {
		secs++
	}
	return secs
}

const lockStripes = 64

// Limiter enforces fixed-window budgets against a volatile store.
type Limiter struct {
	store *store.Store[Window]
	now   func() time.Time
	locks [lockStripes]sync.Mutex
}

// New creates a [Limiter]. A nil now uses time.Now.
func New(s *store.Store[Window], now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		store: s,
		now:   now,
	}
}

// Key returns the counter key for a route and caller.
func Key(path, identifier string) string {
	return KeyPrefix + ":" + path + ":" + identifier
}

// Allow counts one hit against key. When the window is already full it
// returns a rejecting decision and [ErrRateLimited] without counting. Store
// failures return [ErrStoreUnavailable] and an allowing decision; nothing
// about the window is known in that case.
func (l *Limiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	if p.Limit <= 0 || p.Window <= 0 {
		return Decision{Allowed: true}, ErrInvalidPolicy
	}

	mu := l.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()

	w, err := l.store.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Decision{Allowed: true, Limit: p.Limit}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	resetAt := time.UnixMilli(w.ResetAt)
	if w.Count <= 0 || !now.Before(resetAt) {
		resetAt = now.Add(p.Window)
		w = Window{ResetAt: resetAt.UnixMilli()}
		resetAt = time.UnixMilli(w.ResetAt)
	}

	d := Decision{
		Limit:      p.Limit,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}

	if w.Count >= int64(p.Limit) {
		return d, ErrRateLimited
	}

	w.Count++
	if err := l.store.Set(ctx, key, w, d.RetryAfter); err != nil {
		return Decision{Allowed: true, Limit: p.Limit}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	d.Allowed = true
	d.Remaining = p.Limit - int(w.Count)
	return d, nil
}

func (l *Limiter) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.locks[h.Sum32()%lockStripes]
}
