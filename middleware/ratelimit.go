package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	admission "github.com/oriolmontcreus/cms-sub000"
)

// Response headers set by [RateLimit].
const (
	HeaderRetryAfter = "Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
)

// forwardingHeaders are consulted in order by [DefaultIdentifier].
var forwardingHeaders = []string{
	"X-Forwarded-For",
	"CF-Connecting-IP",
	"X-Real-IP",
	"Forwarded",
	"X-Client-IP",
}

type rateLimitConfig struct {
	limit      int
	window     time.Duration
	identifier func(*http.Request) string
	message    string
	routePath  string
}

// Option configures [RateLimit].
type Option func(*rateLimitConfig)

// WithLimit sets the number of requests allowed per window.
func WithLimit(n int) Option {
	return func(c *rateLimitConfig) { c.limit = n }
}

// WithWindow sets the window length.
func WithWindow(d time.Duration) Option {
	return func(c *rateLimitConfig) { c.window = d }
}

// WithIdentifier sets the function naming the caller. Default:
// [DefaultIdentifier].
func WithIdentifier(fn func(*http.Request) string) Option {
	return func(c *rateLimitConfig) {
		if fn != nil {
			c.identifier = fn
		}
	}
}

// WithMessage sets the 429 response body.
func WithMessage(msg string) Option {
	return func(c *rateLimitConfig) { c.message = msg }
}

// WithRoutePath fixes the route component of the counter key. By default
// the chi route pattern is used when present, else the request path.
func WithRoutePath(path string) Option {
	return func(c *rateLimitConfig) { c.routePath = path }
}

// RateLimit returns middleware enforcing a fixed-window budget per route
// and caller. Limit, window and message default to the engine
// configuration.
func RateLimit(engine *admission.Engine, opts ...Option) func(http.Handler) http.Handler {
	def := engine.DefaultRatePolicy()
	cfg := rateLimitConfig{
		limit:      def.Limit,
		window:     def.Window,
		identifier: DefaultIdentifier,
		message:    engine.RateLimitMessage(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	policy := admission.RatePolicy{Limit: cfg.limit, Window: cfg.window}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := cfg.routePath
			if path == "" {
				path = routePattern(r)
			}

			d, err := engine.Allow(r.Context(), path, cfg.identifier(r), policy)
			switch {
			case err == nil:
				writeRateHeaders(w.Header(), d)
			case errors.Is(err, admission.ErrTooManyRequests):
				writeRateHeaders(w.Header(), d)
				http.Error(w, cfg.message, http.StatusTooManyRequests)
				return
			default:
				// Fail open. The engine has logged the store error.
				w.Header().Set(HeaderLimit, strconv.Itoa(cfg.limit))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateHeaders(h http.Header, d admission.RateDecision) {
	h.Set(HeaderRetryAfter, strconv.FormatInt(d.RetryAfterSeconds(), 10))
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(d.ResetUnix(), 10))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// DefaultIdentifier names the caller as "user:{id}" when the request
// carries an identity, otherwise as "ip:{addr}" from the first forwarding
// header present, otherwise "ip:unknown".
func DefaultIdentifier(r *http.Request) string {
	if identity, ok := admission.IdentityFromContext(r.Context()); ok && identity.ID != "" {
		return "user:" + identity.ID
	}

	for _, name := range forwardingHeaders {
		v := r.Header.Get(name)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		first = strings.TrimSpace(first)
		if name == "Forwarded" {
			first = forwardedFor(first)
		}
		if first != "" {
			return "ip:" + first
		}
	}
	return "ip:unknown"
}

// forwardedFor extracts the for= parameter of one RFC 7239 element.
func forwardedFor(element string) string {
	for _, param := range strings.Split(element, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "for") {
			continue
		}
		v = strings.Trim(v, `"`)
		v = strings.TrimPrefix(v, "[")
		if i := strings.Index(v, "]"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return element
}
