package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oriolmontcreus/cms-sub000/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
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

type page struct {
	Slug  string `json:"slug"`
	Views int    `json:"views"`
}

func TestStore_Fallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trips values", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient(store.WithCleanupInterval(0))
		defer c.Close()

		s := store.New[page](c, nil)
		require.NoError(t, s.Set(ctx, "home", page{Slug: "home", Views: 3}, time.Minute))

		v, err := s.Get(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, page{Slug: "home", Views: 3}, v)
	})

	t.Run("expires on read past ttl", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		c := store.NewClient(store.WithClock(clock.Now), store.WithCleanupInterval(0))
		defer c.Close()

		s := store.New[int](c, nil)
		require.NoError(t, s.Set(ctx, "k", 7, 10*time.Second))

		clock.Advance(9 * time.Second)
		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, 7, v)

		clock.Advance(time.Second)
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		c := store.NewClient(store.WithClock(clock.Now), store.WithCleanupInterval(0))
		defer c.Close()

		s := store.New[int](c, nil)
		require.NoError(t, s.Set(ctx, "k", 1, 0))

		clock.Advance(24 * 365 * time.Hour)
		_, err := s.Get(ctx, "k")
		require.NoError(t, err)
	})

	t.Run("delete removes and tolerates missing keys", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()

		s := store.New[string](c, nil)
		require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("prefixes isolate views", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient()
		defer c.Close()

		a := store.New[string](c, nil, store.WithPrefix("a"))
		b := store.New[string](c, nil, store.WithPrefix("b"))
		require.NoError(t, a.Set(ctx, "k", "from-a", time.Minute))

		_, err := b.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("janitor drops expired entries", func(t *testing.T) {
		t.Parallel()

		c := store.NewClient(store.WithCleanupInterval(5 * time.Millisecond))
		defer c.Close()

		s := store.New[string](c, nil)
		require.NoError(t, s.Set(ctx, "k", "v", time.Millisecond))

		require.Eventually(t, func() bool {
			_, err := s.Get(ctx, "k")
			return err != nil
		}, time.Second, 5*time.Millisecond)
	})
}

func TestStore_Redis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newStore := func(t *testing.T) (*miniredis.Miniredis, *store.Store[page]) {
		t.Helper()

		mr := miniredis.RunT(t)
		c := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
		t.Cleanup(func() { _ = c.Close() })

		return mr, store.New[page](c, nil, store.WithPrefix("pages"))
	}

	t.Run("round trips with native ttl", func(t *testing.T) {
		t.Parallel()

		mr, s := newStore(t)
		require.NoError(t, s.Set(ctx, "home", page{Slug: "home"}, 30*time.Second))
		require.Equal(t, store.StateConnected, s.Client().State())

		require.True(t, mr.Exists("pages:home"))
		require.Equal(t, 30*time.Second, mr.TTL("pages:home"))

		v, err := s.Get(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "home", v.Slug)

		mr.FastForward(31 * time.Second)
		_, err = s.Get(ctx, "home")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		mr, s := newStore(t)
		require.NoError(t, s.Set(ctx, "home", page{Slug: "home"}, time.Minute))
		require.NoError(t, s.Delete(ctx, "home"))
		require.False(t, mr.Exists("pages:home"))
	})

	t.Run("corrupt value reports unmarshal error", func(t *testing.T) {
		t.Parallel()

		mr, s := newStore(t)
		require.NoError(t, mr.Set("pages:bad", "{not json"))

		_, err := s.Get(ctx, "bad")
		require.ErrorIs(t, err, store.ErrUnmarshal)
	})
}

type taggedMarshaler struct{}

func (taggedMarshaler) Marshal(v string) ([]byte, error) { return []byte("s:" + v), nil }

func (taggedMarshaler) Unmarshal(data []byte) (string, error) { return string(data[2:]), nil }

func TestStore_CustomMarshaler(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c := store.NewClient(store.WithCandidates(store.Candidate{Addr: mr.Addr()}))
	defer c.Close()

	s := store.New[string](c, taggedMarshaler{})
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "hello", time.Minute))

	raw, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "s:hello", raw)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}
