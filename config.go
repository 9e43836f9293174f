package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/oriolmontcreus/cms-sub000/jwt"
	"github.com/oriolmontcreus/cms-sub000/store"
)

// Environment selects cookie security and log verbosity.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the complete admission configuration. Start from
// [DefaultConfig] and override what differs.
type Config struct {
	Environment  Environment        `yaml:"environment"`
	Token        TokenConfig        `yaml:"token"`
	Store        StoreConfig        `yaml:"store"`
	SessionCache SessionCacheConfig `yaml:"session_cache"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Cookie       CookieConfig       `yaml:"cookie"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the session token codec.
type TokenConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SigningMethod string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	Secret        string        `yaml:"secret"`
	PrivateKeyPEM string        `yaml:"private_key_pem"`
	PublicKeyPEM  string        `yaml:"public_key_pem"`
	Issuer        string        `yaml:"issuer"`
	Leeway        time.Duration `yaml:"leeway"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the volatile store candidates.
type StoreConfig struct {
	Candidates      []store.Candidate `yaml:"candidates"`
	ConnectTimeout  time.Duration     `yaml:"connect_timeout"`
	CleanupInterval time.Duration     `yaml:"cleanup_interval"`
}

/*
====================================
SESSION CACHE CONFIG
====================================
*/

// SessionCacheConfig bounds the in-process identity cache.
type SessionCacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the defaults used by routes that do not set their
// own budget.
type RateLimitConfig struct {
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Message string        `yaml:"message"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the session cookie. The remaining attributes are
// fixed: HttpOnly, Path "/", SameSite Lax, Secure in production, and
// Max-Age equal to the token TTL.
type CookieConfig struct {
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "cms-session"

// DefaultRateLimitMessage is the 429 body when a route sets none.
const DefaultRateLimitMessage = "Too many requests, please try again later."

// DefaultConfig returns a development configuration with no Redis
// candidates.
func DefaultConfig() Config {
	return Config{
		Environment: Development,
		Token: TokenConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
		},
		Store: StoreConfig{
			ConnectTimeout:  2 * time.Second,
			CleanupInterval: time.Minute,
		},
		SessionCache: SessionCacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
		RateLimit: RateLimitConfig{
			Limit:   60,
			Window:  time.Minute,
			Message: DefaultRateLimitMessage,
		},
		Cookie: CookieConfig{
			Name: DefaultCookieName,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for internal consistency. Production refuses the
// development token secret.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case Development, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	// Token
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token TTL must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return fmt.Errorf("token leeway must be between 0 and 2m")
	}
	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodHS256:
		if c.IsProduction() && (c.Token.Secret == "" || c.Token.Secret == jwt.DevelopmentSecret) {
			return fmt.Errorf("production requires a token secret")
		}
		if c.IsProduction() && len(c.Token.Secret) < 32 {
			return fmt.Errorf("production token secret must be at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if c.Token.PrivateKeyPEM == "" || c.Token.PublicKeyPEM == "" {
			return fmt.Errorf("ed25519 requires private and public keys")
		}
	default:
		return fmt.Errorf("unsupported token signing method %q", c.Token.SigningMethod)
	}

	// Store
	if c.Store.ConnectTimeout <= 0 {
		return fmt.Errorf("store connect timeout must be > 0")
	}
	if c.Store.CleanupInterval < 0 {
		return fmt.Errorf("store cleanup interval must be >= 0")
	}
	for i, cand := range c.Store.Candidates {
		if strings.TrimSpace(cand.Addr) == "" {
			return fmt.Errorf("store candidate %d has no address", i)
		}
	}

	// Session cache
	if c.SessionCache.TTL <= 0 {
		return fmt.Errorf("session cache TTL must be > 0")
	}
	if c.SessionCache.MaxEntries < 0 {
		return fmt.Errorf("session cache max entries must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate limit must be > 0")
	}
	if c.RateLimit.Window < time.Second {
		return fmt.Errorf("rate limit window must be >= 1s")
	}

	// Cookie
	if !validCookieName(c.Cookie.Name) {
		return fmt.Errorf("invalid cookie name %q", c.Cookie.Name)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit buffer size must be > 0")
	}

	return nil
}

// validCookieName accepts RFC 6265 token characters.
func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}
	return true
}
