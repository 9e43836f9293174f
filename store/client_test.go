package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oriolmontcreus/cms-sub000/store"
)

var errRefused = errors.New("connection refused")

func failingDialer(calls *atomic.Int32) store.Dialer {
	return func(context.Context, store.Candidate) (redis.UniversalClient, error) {
		calls.Add(1)
		return nil, errRefused
	}
}

func TestClient_Connect(t *testing.T) {
	t.Parallel()

	t.Run("no candidates goes straight to fallback", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()

		require.Equal(t, store.StateUnattempted, c.State())
		require.Equal(t, store.StateFallback, c.Connect(context.Background()))
		require.Zero(t, c.DialAttempts())
	})

	t.Run("exhausted candidates stay in fallback without redialing", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		c := store.NewClient(
			store.WithCandidates(store.Candidate{Addr: "a:6379"}, store.Candidate{Addr: "b:6379"}),
			store.WithDialer(failingDialer(&calls)),
		)
		defer c.Close()

		ctx := context.Background()
		require.Equal(t, store.StateFallback, c.Connect(ctx))
		require.Equal(t, int32(2), calls.Load())

		for range 3 {
			require.Equal(t, store.StateFallback, c.Connect(ctx))
		}
		require.Equal(t, int32(2), calls.Load())
		require.Equal(t, 2, c.DialAttempts())
		require.Empty(t, c.Addr())
	})

	t.Run("first answering candidate wins", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		c := store.NewClient(
			store.WithCandidates(store.Candidate{Addr: "127.0.0.1:1"}, store.Candidate{Addr: mr.Addr()}),
			store.WithConnectTimeout(500*time.Millisecond),
		)
		defer c.Close()

		require.Equal(t, store.StateConnected, c.Connect(context.Background()))
		require.Equal(t, mr.Addr(), c.Addr())
		require.Equal(t, 2, c.DialAttempts())
		require.True(t, c.HealthCheck(context.Background()))
	})

	t.Run("slow candidate times out", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient(
			store.WithCandidates(store.Candidate{Addr: "slow:6379"}),
			store.WithConnectTimeout(20*time.Millisecond),
			store.WithDialer(func(ctx context.Context, _ store.Candidate) (redis.UniversalClient, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		)
		defer c.Close()

		start := time.Now()
		require.Equal(t, store.StateFallback, c.Connect(context.Background()))
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("late dial is closed", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		dialed := make(chan redis.UniversalClient, 1)

		c := store.NewClient(
			store.WithCandidates(store.Candidate{Addr: mr.Addr()}),
			store.WithConnectTimeout(10*time.Millisecond),
			store.WithDialer(func(_ context.Context, cand store.Candidate) (redis.UniversalClient, error) {
				time.Sleep(50 * time.Millisecond)
				client := redis.NewClient(&redis.Options{Addr: cand.Addr})
				dialed <- client
				return client, nil
			}),
		)
		defer c.Close()

		require.Equal(t, store.StateFallback, c.Connect(context.Background()))

		var late redis.UniversalClient
		select {
		case late = <-dialed:
		case <-time.After(time.Second):
			t.Fatal("dialer never returned")
		}

		require.Eventually(t, func() bool {
			return errors.Is(late.Ping(context.Background()).Err(), redis.ErrClosed)
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("concurrent callers share one dial", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		c := store.NewClient(
			store.WithCandidates(store.Candidate{Addr: "a:6379"}),
			store.WithDialer(func(context.Context, store.Candidate) (redis.UniversalClient, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return nil, errRefused
			}),
		)
		defer c.Close()

		var wg sync.WaitGroup
		states := make([]store.State, 16)
		for i := range states {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				states[i] = c.Connect(context.Background())
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
		for _, s := range states {
			require.Equal(t, store.StateFallback, s)
		}
	})

	t.Run("operations connect lazily", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()

		s := store.New[string](c, nil)
		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.Equal(t, store.StateFallback, c.State())
	})
}

func TestClient_RedisErrorsDoNotSwitchToFallback(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
	defer c.Close()

	s := store.New[int](c, nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", 1, time.Minute))

	mr.SetError("ERR backend down")
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.ErrorIs(t, s.Set(ctx, "k", 2, time.Minute), store.ErrUnavailable)
	require.ErrorIs(t, s.Delete(ctx, "k"), store.ErrUnavailable)
	require.False(t, c.HealthCheck(ctx))
	require.Equal(t, store.StateConnected, c.State())

	mr.SetError("")
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	c := store.NewClient(store.WithCleanupInterval(time.Millisecond))
	s := store.New[string](c, nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrClosed)
	require.False(t, c.HealthCheck(ctx))
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nil client fails", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, store.Healthcheck(nil)(ctx), store.ErrHealthcheckFailed)
	})

	t.Run("unattempted reports state", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()

		err := store.Healthcheck(c)(ctx)
		require.ErrorIs(t, err, store.ErrHealthcheckFailed)
		require.Equal(t, store.StateUnattempted, c.State())
	})

	t.Run("fallback is healthy", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()
		c.Connect(ctx)

		require.NoError(t, store.Healthcheck(c)(ctx))
		require.False(t, c.HealthCheck(ctx))
	})

	t.Run("connected probes redis", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		c := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
		defer c.Close()
		c.Connect(ctx)

		check := store.Healthcheck(c)
		require.NoError(t, check(ctx))

		mr.SetError("ERR down")
		require.ErrorIs(t, check(ctx), store.ErrHealthcheckFailed)
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "unattempted", store.StateUnattempted.String())
	require.Equal(t, "connecting", store.StateConnecting.String())
	require.Equal(t, "connected", store.StateConnected.String())
	require.Equal(t, "fallback", store.StateFallback.String())
	require.Equal(t, "unknown", store.State(42).String())
	require.True(t, store.StateFallback.Terminal())
	require.False(t, store.StateConnecting.Terminal())
}
