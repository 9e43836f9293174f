package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/permission"
	"github.com/oriolmontcreus/cms-sub000/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	clientUser = admission.Identity{ID: "u-client", Email: "client@example.com", Permissions: permission.Client}
	devUser    = admission.Identity{ID: "u-dev", Email: "dev@example.com", Permissions: permission.Developer}
	adminUser  = admission.Identity{ID: "u-admin", Email: "admin@example.com", Permissions: permission.SuperAdmin}
)

func users(ids ...admission.Identity) admission.UserProvider {
	byID := make(map[string]admission.Identity, len(ids))
	for _, id := range ids {
		byID[id.ID] = id
	}
	return admission.UserProviderFunc(func(_ context.Context, id string) (admission.Identity, error) {
		identity, ok := byID[id]
		if !ok {
			return admission.Identity{}, admission.ErrUserNotFound
		}
		return identity, nil
	})
}

func newEngine(t *testing.T, c *clock, client *store.Client) *admission.Engine {
	t.Helper()

	cfg := admission.DefaultConfig()
	cfg.Token.Secret = "middleware-test-secret-middleware-test"
	cfg.Store.CleanupInterval = 0

	b := admission.New().
		WithConfig(cfg).
		WithUserProvider(users(clientUser, devUser, adminUser)).
		WithClock(c.Now)
	if client != nil {
		b = b.WithStore(client)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func sessionCookie(t *testing.T, engine *admission.Engine, identity admission.Identity) *http.Cookie {
	t.Helper()
	token, err := engine.IssueToken(context.Background(), identity)
	require.NoError(t, err)
	return engine.SessionCookie(token)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
