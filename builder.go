package admission

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oriolmontcreus/cms-sub000/internal/rate"
	"github.com/oriolmontcreus/cms-sub000/jwt"
	"github.com/oriolmontcreus/cms-sub000/session"
	"github.com/oriolmontcreus/cms-sub000/store"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	store  *store.Client

	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	cfg.Store.Candidates = append([]store.Candidate(nil), cfg.Store.Candidates...)
	b.config = cfg
	return b
}

// WithStore shares an existing store client. Without it Build creates one
// from Config.Store and the engine closes it on Close.
func (b *Builder) WithStore(client *store.Client) *Builder {
	b.store = client
	return b
}

// WithUserProvider sets the identity lookup. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit destination used when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Default: discard.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock injects the clock shared by the codec, session cache, store
// fallback and rate limiter.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, fmt.Errorf("%w: user provider required", ErrEngineNotReady)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		Secret:        []byte(cfg.Token.Secret),
		PrivateKey:    []byte(cfg.Token.PrivateKeyPEM),
		PublicKey:     []byte(cfg.Token.PublicKeyPEM),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if codec.UsingDevelopmentSecret() {
		logger.Warn("token codec is using the development secret; set JWT_SECRET")
	}

	client := b.store
	ownsStore := false
	if client == nil {
		client = store.NewClient(
			store.WithCandidates(cfg.Store.Candidates...),
			store.WithConnectTimeout(cfg.Store.ConnectTimeout),
			store.WithCleanupInterval(cfg.Store.CleanupInterval),
			store.WithClock(now),
			store.WithLogger(logger),
		)
		ownsStore = true
	}

	cache := session.NewCache(
		func(i Identity) string { return i.ID },
		session.WithTTL(cfg.SessionCache.TTL),
		session.WithMaxEntries(cfg.SessionCache.MaxEntries),
		session.WithClock(now),
	)

	engine := &Engine{
		config:    cfg,
		codec:     codec,
		users:     b.userProvider,
		cache:     cache,
		store:     client,
		ownsStore: ownsStore,
		limiter:   rate.New(store.New[rate.Window](client, nil), now),
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		now:       now,
	}

	b.built = true

	return engine, nil
}
