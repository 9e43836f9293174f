// Command cmsd serves the CMS API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/pflag"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/internal/content"
	"github.com/oriolmontcreus/cms-sub000/internal/logging"
	"github.com/oriolmontcreus/cms-sub000/internal/server"
	"github.com/oriolmontcreus/cms-sub000/metrics/export/prometheus"
	"github.com/oriolmontcreus/cms-sub000/password"
	"github.com/oriolmontcreus/cms-sub000/permission"
	"github.com/oriolmontcreus/cms-sub000/store"
)

// Bootstrap account, created at startup when both are set.
const (
	envAdminEmail    = "CMS_ADMIN_EMAIL"
	envAdminPassword = "CMS_ADMIN_PASSWORD"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		addr          string
		embeddedRedis bool
		buildCommand  string
		buildTimeout  time.Duration
	)

	flagSet := pflag.NewFlagSet("cmsd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	flagSet.BoolVar(&embeddedRedis, "embedded-redis", false, "run an in-process Redis and use it as the first store candidate")
	flagSet.StringVar(&buildCommand, "build-cmd", "", "site build command, split on spaces")
	flagSet.DurationVar(&buildTimeout, "build-timeout", 10*time.Minute, "maximum duration of one site build")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := admission.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, flush := logging.New(logging.ConfigFromEnv(cfg.Environment, os.Getenv))
	defer flush()

	if embeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		defer mr.Close()
		cfg.Store.Candidates = append([]store.Candidate{{Addr: mr.Addr()}}, cfg.Store.Candidates...)
		logger.Info("embedded redis started", "addr", mr.Addr())
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return err
	}
	users := content.NewUsers(hasher, nil)

	b := admission.New().
		WithConfig(cfg).
		WithUserProvider(users).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(admission.NewSlogSink(logger.With("component", "audit")))
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	users.SetInvalidator(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := engine.Connect(ctx)
	logger.Info("volatile store ready", "state", state.String())

	if err := bootstrapAdmin(ctx, users, logger); err != nil {
		return err
	}

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		metrics, err = prometheus.NewCollector(engine).Handler()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	srv := server.New(server.Deps{
		Engine:  engine,
		Users:   users,
		Pages:   content.NewPages(nil),
		Builder: content.NewBuilder(strings.Fields(buildCommand), buildTimeout, logger),
		Metrics: metrics,
		Logger:  logger,
	})

	err = server.Run(ctx, addr, srv.Handler(), logger)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func bootstrapAdmin(ctx context.Context, users *content.Users, logger *slog.Logger) error {
	email, pw := os.Getenv(envAdminEmail), os.Getenv(envAdminPassword)
	if email == "" || pw == "" {
		return nil
	}
	role := permission.SuperAdmin
	identity, err := users.Create(ctx, content.UserInput{Email: &email, Password: &pw, Permissions: &role})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", "subject_id", identity.ID)
	return nil
}
