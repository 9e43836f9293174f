package admission

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriolmontcreus/cms-sub000/jwt"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.RateLimit.Limit != 60 || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Token.TTL != 24*time.Hour {
		t.Fatalf("unexpected token TTL: %v", cfg.Token.TTL)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"environment":    func(c *Config) { c.Environment = "staging" },
		"token ttl":      func(c *Config) { c.Token.TTL = 0 },
		"leeway":         func(c *Config) { c.Token.Leeway = time.Hour },
		"method":         func(c *Config) { c.Token.SigningMethod = "rs256" },
		"ed25519 keys":   func(c *Config) { c.Token.SigningMethod = "ed25519" },
		"prod no secret": func(c *Config) { c.Environment = Production },
		"prod dev secret": func(c *Config) {
			c.Environment = Production
			c.Token.Secret = jwt.DevelopmentSecret
		},
		"prod short secret": func(c *Config) {
			c.Environment = Production
			c.Token.Secret = "short"
		},
		"connect timeout":   func(c *Config) { c.Store.ConnectTimeout = 0 },
		"blank candidate":   func(c *Config) { c.Store.Candidates = ParseCandidates("a:1"); c.Store.Candidates[0].Addr = " " },
		"cache ttl":         func(c *Config) { c.SessionCache.TTL = 0 },
		"cache size":        func(c *Config) { c.SessionCache.MaxEntries = -1 },
		"rate limit":        func(c *Config) { c.RateLimit.Limit = 0 },
		"rate window":       func(c *Config) { c.RateLimit.Window = time.Millisecond },
		"cookie name":       func(c *Config) { c.Cookie.Name = "bad name" },
		"empty cookie name": func(c *Config) { c.Cookie.Name = "" },
		"audit buffer": func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		},
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestConfigProductionWithSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = Production
	cfg.Token.Secret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected production config to validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvEnvironment:     "Production",
		EnvTokenSecret:     "from-env-from-env-from-env-from-env",
		EnvRedisCandidates: "redis-a:6379, ,redis-b:6380",
		EnvSessionCookie:   "site-session",
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Environment != Production {
		t.Fatalf("expected production, got %q", cfg.Environment)
	}
	if cfg.Token.Secret != env[EnvTokenSecret] {
		t.Fatal("expected secret from environment")
	}
	if len(cfg.Store.Candidates) != 2 || cfg.Store.Candidates[0].Addr != "redis-a:6379" || cfg.Store.Candidates[1].Addr != "redis-b:6380" {
		t.Fatalf("unexpected candidates: %+v", cfg.Store.Candidates)
	}
	if cfg.Cookie.Name != "site-session" {
		t.Fatalf("unexpected cookie name %q", cfg.Cookie.Name)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cms.yaml")
	data := []byte(`
environment: development
token:
  ttl: 12h
  issuer: cms
store:
  connect_timeout: 500ms
  candidates:
    - addr: localhost:6379
    - addr: redis:6379
      db: 2
session_cache:
  ttl: 1m
  max_entries: 50
rate_limit:
  limit: 10
  window: 30s
  message: slow down
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvRedisCandidates, "")
	t.Setenv(EnvEnvironment, "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Token.TTL != 12*time.Hour || cfg.Token.Issuer != "cms" {
		t.Fatalf("unexpected token config: %+v", cfg.Token)
	}
	if cfg.Store.ConnectTimeout != 500*time.Millisecond || len(cfg.Store.Candidates) != 2 || cfg.Store.Candidates[1].DB != 2 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.SessionCache.MaxEntries != 50 || cfg.RateLimit.Limit != 10 || cfg.RateLimit.Message != "slow down" {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.SessionCache, cfg.RateLimit)
	}
	if cfg.Cookie.Name != DefaultCookieName {
		t.Fatalf("expected default cookie name to survive, got %q", cfg.Cookie.Name)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
