package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oriolmontcreus/cms-sub000/internal/rate"
	"github.com/oriolmontcreus/cms-sub000/jwt"
	"github.com/oriolmontcreus/cms-sub000/permission"
	"github.com/oriolmontcreus/cms-sub000/session"
	"github.com/oriolmontcreus/cms-sub000/store"
)

// Engine is the request-admission core: it resolves session tokens to
// identities, checks role masks, and counts requests against rate-limit
// windows. An Engine is safe for concurrent use.
type Engine struct {
	config    Config
	codec     *jwt.Codec
	users     UserProvider
	cache     *session.Cache[Identity]
	store     *store.Client
	ownsStore bool
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *Metrics
	audit     *auditDispatcher
	now       func() time.Time

	fallbackOnce sync.Once
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

/*
====================================
AUTHENTICATION
====================================
*/

// Authenticate resolves token to an identity. The session cache is checked
// first; on a miss the token is verified and the subject looked up, and the
// result cached until the earlier of the cache TTL and the token expiry.
//
// Every failure is returned as [ErrUnauthorized]. The cause is logged.
func (e *Engine) Authenticate(ctx context.Context, token string) (Identity, error) {
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	if token == "" {
		e.metrics.Inc(MetricAuthMissingToken)
		e.emitAudit(ctx, AuditAuthRejected, "", false, "missing_token")
		return Identity{}, ErrUnauthorized
	}

	identity, hit, err := e.cache.Resolve(ctx, token, func(ctx context.Context) (Identity, time.Duration, error) {
		return e.resolveToken(ctx, token)
	})
	if err != nil {
		e.rejectAuthentication(ctx, err)
		return Identity{}, ErrUnauthorized
	}

	if hit {
		e.metrics.Inc(MetricSessionCacheHit)
	} else {
		e.metrics.Inc(MetricSessionCacheMiss)
	}
	return identity, nil
}

func (e *Engine) resolveToken(ctx context.Context, token string) (Identity, time.Duration, error) {
	claims, err := e.codec.Verify(token)
	if err != nil {
		return Identity{}, 0, err
	}

	identity, err := e.users.GetUserByID(ctx, claims.SubjectID())
	if err != nil {
		return Identity{}, 0, err
	}

	// Never cache past expiry; a non-positive TTL would select the default.
	return identity, max(claims.ExpiresAt.Time.Sub(e.now()), time.Millisecond), nil
}

func (e *Engine) rejectAuthentication(ctx context.Context, err error) {
	reason := "internal_error"
	switch {
	case errors.Is(err, ErrInvalidToken):
		reason = "invalid_token"
		e.metrics.Inc(MetricAuthInvalidToken)
		e.logger.DebugContext(ctx, "session token rejected", "error", err)
	case errors.Is(err, ErrUserNotFound):
		reason = "unknown_subject"
		e.metrics.Inc(MetricAuthUnknownSubject)
		e.logger.InfoContext(ctx, "session token for unknown subject", "error", err)
	default:
		e.metrics.Inc(MetricAuthInternalError)
		e.logger.WarnContext(ctx, "identity lookup failed", "error", err)
	}
	e.emitAudit(ctx, AuditAuthRejected, "", false, reason)
}

// Authorize reports [ErrUnauthorized] when identity lacks any bit of
// required.
func (e *Engine) Authorize(ctx context.Context, identity Identity, required permission.Mask) error {
	if !identity.Permissions.Satisfies(required) {
		e.metrics.Inc(MetricAuthForbidden)
		e.emitAudit(ctx, AuditAuthRejected, identity.ID, false, "insufficient_role")
		return ErrUnauthorized
	}
	return nil
}

// Admit authenticates token and authorizes the identity for required.
func (e *Engine) Admit(ctx context.Context, token string, required permission.Mask) (Identity, error) {
	identity, err := e.Authenticate(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if err := e.Authorize(ctx, identity, required); err != nil {
		return Identity{}, err
	}

	e.metrics.Inc(MetricAuthSuccess)
	return identity, nil
}

/*
====================================
TOKENS AND SESSIONS
====================================
*/

// IssueToken signs a session token for identity. Used by the login flow.
func (e *Engine) IssueToken(ctx context.Context, identity Identity) (string, error) {
	token, err := e.codec.Sign(jwt.Payload{SubjectID: identity.ID, Email: identity.Email})
	if err != nil {
		e.logger.ErrorContext(ctx, "session token signing failed", "error", err)
		return "", err
	}

	e.metrics.Inc(MetricTokenIssued)
	e.emitAudit(ctx, AuditTokenIssued, identity.ID, true, "")
	return token, nil
}

// Forget drops the cached identity for one token, e.g. on logout.
func (e *Engine) Forget(token string) {
	if token != "" {
		e.cache.Delete(token)
	}
}

// InvalidateSubject drops every cached identity for subjectID so the next
// request re-fetches it. Call it after any mutation of the user.
func (e *Engine) InvalidateSubject(ctx context.Context, subjectID string) int {
	removed := e.cache.InvalidateBySubject(subjectID)
	e.metrics.Add(MetricSessionInvalidated, uint64(removed))
	e.emitAudit(ctx, AuditSubjectInvalidated, subjectID, true, "")
	return removed
}

// CookieName returns the session cookie name.
func (e *Engine) CookieName() string {
	return e.config.Cookie.Name
}

// SessionCookie builds the cookie carrying token.
func (e *Engine) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   e.config.Cookie.Domain,
		MaxAge:   int(e.codec.TTL() / time.Second),
		HttpOnly: true,
		Secure:   e.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie builds a cookie that deletes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	c := e.SessionCookie("")
	c.MaxAge = -1
	return c
}

/*
====================================
RATE LIMITING
====================================
*/

// DefaultRatePolicy returns the configured default budget.
func (e *Engine) DefaultRatePolicy() RatePolicy {
	return RatePolicy{Limit: e.config.RateLimit.Limit, Window: e.config.RateLimit.Window}
}

// RateLimitMessage returns the configured default 429 body.
func (e *Engine) RateLimitMessage() string {
	return e.config.RateLimit.Message
}

// Allow counts one request by identifier against the window for path.
// A full window returns [ErrTooManyRequests]. A store failure returns an
// error wrapping [ErrStoreUnavailable] and an allowing decision; callers
// let the request through.
func (e *Engine) Allow(ctx context.Context, path, identifier string, p RatePolicy) (RateDecision, error) {
	key := rate.Key(path, identifier)
	d, err := e.limiter.Allow(ctx, key, p)
	e.noteStoreState(ctx)

	switch {
	case err == nil:
		e.metrics.Inc(MetricRateLimitAllowed)
		return d, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metrics.Inc(MetricRateLimitHit)
		e.emitAuditRoute(ctx, AuditRateLimited, identifier, path)
		return d, ErrTooManyRequests
	default:
		e.metrics.Inc(MetricRateLimitFailOpen)
		e.logger.WarnContext(ctx, "rate limit check failed, allowing request",
			"route", path, "error", err)
		return d, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

/*
====================================
STORE AND LIFECYCLE
====================================
*/

// Connect resolves the store connection state, dialing if needed.
func (e *Engine) Connect(ctx context.Context) store.State {
	s := e.store.Connect(ctx)
	e.noteStoreState(ctx)
	return s
}

// StoreState returns the store connection state without dialing.
func (e *Engine) StoreState() store.State {
	return e.store.State()
}

// Healthy probes the store. A store in fallback is healthy; the map is
// always reachable.
func (e *Engine) Healthy(ctx context.Context) error {
	return store.Healthcheck(e.store)(ctx)
}

func (e *Engine) noteStoreState(ctx context.Context) {
	if e.store.State() != store.StateFallback {
		return
	}
	e.fallbackOnce.Do(func() {
		e.metrics.Inc(MetricStoreFallback)
		e.emitAudit(ctx, AuditStoreFallback, "", false, "")
	})
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close drains the audit dispatcher and closes the store if the engine
// created it.
func (e *Engine) Close() error {
	e.audit.Close()
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

func (e *Engine) emitAudit(ctx context.Context, eventType, subjectID string, success bool, reason string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		SubjectID: subjectID,
		Success:   success,
		Reason:    reason,
	})
}

func (e *Engine) emitAuditRoute(ctx context.Context, eventType, identifier, route string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		Route:     route,
		Metadata:  map[string]string{"identifier": identifier},
	})
}
