package rate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oriolmontcreus/cms-sub000/internal/rate"
	"github.com/oriolmontcreus/cms-sub000/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryLimiter(t *testing.T) (*rate.Limiter, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)}
	client := store.NewClient(store.WithClock(clock.Now), store.WithCleanupInterval(0))
	t.Cleanup(func() { _ = client.Close() })

	return rate.New(store.New[rate.Window](client, nil), clock.Now), clock
}

var minutePolicy = rate.Policy{Limit: 3, Window: time.Minute}

func TestKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ratelimit:/api/pages:user:u1", rate.Key("/api/pages", "user:u1"))
}

func TestAllow_FixedWindow(t *testing.T) {
	t.Parallel()

	l, _ := newMemoryLimiter(t)
	ctx := context.Background()
	key := rate.Key("/api/pages", "ip:10.0.0.1")

	for _, want := range []int{2, 1, 0} {
		d, err := l.Allow(ctx, key, minutePolicy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, want, d.Remaining)
		require.Equal(t, 3, d.Limit)
	}

	d, err := l.Allow(ctx, key, minutePolicy)
	require.ErrorIs(t, err, rate.ErrRateLimited)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)
	require.Equal(t, int64(60), d.RetryAfterSeconds())
}

func TestAllow_WindowAnchoredAtFirstHit(t *testing.T) {
	t.Parallel()

	l, clock := newMemoryLimiter(t)
	ctx := context.Background()
	key := rate.Key("/p", "ip:1")

	first, err := l.Allow(ctx, key, minutePolicy)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	second, err := l.Allow(ctx, key, minutePolicy)
	require.NoError(t, err)
	require.Equal(t, first.ResetAt, second.ResetAt)
	require.Equal(t, int64(40), second.RetryAfterSeconds())
	require.Equal(t, first.ResetAt.Unix(), second.ResetUnix())
}

func TestAllow_WindowReset(t *testing.T) {
	t.Parallel()

	l, clock := newMemoryLimiter(t)
	ctx := context.Background()
	key := rate.Key("/p", "user:u1")

	for range 3 {
		_, err := l.Allow(ctx, key, minutePolicy)
		require.NoError(t, err)
	}
	_, err := l.Allow(ctx, key, minutePolicy)
	require.ErrorIs(t, err, rate.ErrRateLimited)

	clock.Advance(time.Minute)

	d, err := l.Allow(ctx, key, minutePolicy)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 2, d.Remaining)
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newMemoryLimiter(t)
	ctx := context.Background()
	policy := rate.Policy{Limit: 1, Window: time.Minute}

	_, err := l.Allow(ctx, rate.Key("/a", "ip:1"), policy)
	require.NoError(t, err)
	_, err = l.Allow(ctx, rate.Key("/b", "ip:1"), policy)
	require.NoError(t, err)
	_, err = l.Allow(ctx, rate.Key("/a", "ip:2"), policy)
	require.NoError(t, err)
	_, err = l.Allow(ctx, rate.Key("/a", "ip:1"), policy)
	require.ErrorIs(t, err, rate.ErrRateLimited)
}

func TestAllow_InvalidPolicy(t *testing.T) {
	t.Parallel()

	l, _ := newMemoryLimiter(t)
	for _, p := range []rate.Policy{{Limit: 0, Window: time.Minute}, {Limit: 1}} {
		d, err := l.Allow(context.Background(), "k", p)
		require.ErrorIs(t, err, rate.ErrInvalidPolicy)
		require.True(t, d.Allowed)
	}
}

func TestAllow_ExactUnderConcurrencyInProcess(t *testing.T) {
	t.Parallel()

	l, _ := newMemoryLimiter(t)
	ctx := context.Background()
	policy := rate.Policy{Limit: 50, Window: time.Minute}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, err := l.Allow(ctx, "ratelimit:/hot:ip:1", policy); err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(50), allowed.Load())
}

func TestAllow_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	clock := &fakeClock{now: time.Now()}
	client := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	l := rate.New(store.New[rate.Window](client, nil), clock.Now)
	ctx := context.Background()
	key := rate.Key("/api/build", "user:u1")

	for range 3 {
		_, err := l.Allow(ctx, key, minutePolicy)
		require.NoError(t, err)
	}
	require.True(t, mr.Exists(key))
	require.LessOrEqual(t, mr.TTL(key), time.Minute)

	_, err := l.Allow(ctx, key, minutePolicy)
	require.ErrorIs(t, err, rate.ErrRateLimited)

	mr.FastForward(time.Minute)
	clock.Advance(time.Minute)

	d, err := l.Allow(ctx, key, minutePolicy)
	require.NoError(t, err)
	require.Equal(t, 2, d.Remaining)
}

func TestAllow_StoreFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	l := rate.New(store.New[rate.Window](client, nil), nil)
	ctx := context.Background()
	require.Equal(t, store.StateConnected, client.Connect(ctx))

	mr.SetError("ERR backend down")

	d, err := l.Allow(ctx, "ratelimit:/p:ip:1", minutePolicy)
	require.ErrorIs(t, err, rate.ErrStoreUnavailable)
	require.True(t, d.Allowed)
}
