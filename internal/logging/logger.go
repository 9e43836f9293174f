package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"

	admission "github.com/oriolmontcreus/cms-sub000"
)

// EnvSentryDSN enables the Sentry fan-out when set.
const EnvSentryDSN = "SENTRY_DSN"

// Config selects handler format and level.
type Config struct {
	Environment admission.Environment
	// Level overrides the environment default: "debug", "info", "warn" or "error".
	Level     string
	Output    io.Writer
	SentryDSN string
}

// ConfigFromEnv derives a Config for env, reading SENTRY_DSN and LOG_LEVEL
// through getenv.
func ConfigFromEnv(env admission.Environment, getenv func(string) string) Config {
	return Config{
		Environment: env,
		Level:       getenv("LOG_LEVEL"),
		SentryDSN:   getenv(EnvSentryDSN),
	}
}

// New returns the process logger and a flush function to call on shutdown.
// Without a DSN flush is a no-op.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func()) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}

	opts := &slog.HandlerOptions{Level: level(cfg)}
	var base slog.Handler
	if cfg.Environment == admission.Production {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}

	noop := func() {}
	if cfg.SentryDSN == "" {
		return slog.New(NewContextHandler(base, extractors...)), noop
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: string(cfg.Environment),
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("sentry init failed", "error", err)
		return slog.New(NewContextHandler(base, extractors...)), noop
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	logger := slog.New(NewContextHandler(newFanout(base, sentryHandler), extractors...))
	return logger, func() { sentry.Flush(2 * time.Second) }
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func level(cfg Config) slog.Level {
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if cfg.Environment == admission.Production {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
