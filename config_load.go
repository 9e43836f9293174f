package admission

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oriolmontcreus/cms-sub000/store"
)

// Environment variables read by [LoadConfig].
const (
	EnvEnvironment     = "CMS_ENV"
	EnvTokenSecret     = "JWT_SECRET"
	EnvRedisCandidates = "REDIS_CANDIDATES"
	EnvSessionCookie   = "SESSION_COOKIE"
)

// LoadConfig starts from [DefaultConfig], merges the YAML file at path when
// path is not empty, applies environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Unset or empty
// variables leave the field unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvEnvironment)); v != "" {
		c.Environment = Environment(strings.ToLower(v))
	}
	if v := getenv(EnvTokenSecret); v != "" {
		c.Token.Secret = v
	}
	if v := getenv(EnvRedisCandidates); v != "" {
		c.Store.Candidates = ParseCandidates(v)
	}
	if v := strings.TrimSpace(getenv(EnvSessionCookie)); v != "" {
		c.Cookie.Name = v
	}
}

// ParseCandidates splits a comma-separated "host:port" list, keeping order
// and skipping blanks.
func ParseCandidates(list string) []store.Candidate {
	var out []store.Candidate
	for _, addr := range strings.Split(list, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, store.Candidate{Addr: addr})
	}
	return out
}
