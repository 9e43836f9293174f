package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/internal/content"
	"github.com/oriolmontcreus/cms-sub000/internal/logging"
	"github.com/oriolmontcreus/cms-sub000/middleware"
)

// Route budgets.
const (
	loginLimit = 10
	pagesLimit = 60
	buildLimit = 5
)

// Deps are the collaborators the API serves.
type Deps struct {
	Engine  *admission.Engine
	Users   *content.Users
	Pages   *content.Pages
	Builder *content.Builder
	// Metrics serves /metrics. Optional.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the CMS HTTP API.
type Server struct {
	engine  *admission.Engine
	users   *content.Users
	pages   *content.Pages
	builder *content.Builder
	metrics http.Handler
	logger  *slog.Logger
}

// New creates a Server.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		engine:  d.Engine,
		users:   d.Users,
		pages:   d.Pages,
		builder: d.Builder,
		metrics: d.Metrics,
		logger:  logger,
	}
}

// handlerFunc is an HTTP handler that reports failures as errors.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.wrap(s.health))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	e := s.engine
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(e,
				middleware.WithLimit(loginLimit),
				middleware.WithWindow(time.Minute),
			)).Post("/login", s.wrap(s.login))
			r.Post("/logout", s.wrap(s.logout))
			r.With(middleware.RequireClient(e)).Get("/me", s.wrap(s.me))
		})

		r.Route("/pages", func(r chi.Router) {
			r.Use(middleware.RequireDeveloper(e))
			r.Use(middleware.RateLimit(e,
				middleware.WithLimit(pagesLimit),
				middleware.WithWindow(time.Minute),
				middleware.WithRoutePath("/api/pages"),
			))
			r.Get("/", s.wrap(s.listPages))
			r.Post("/", s.wrap(s.createPage))
			r.Get("/{id}", s.wrap(s.getPage))
			r.Put("/{id}", s.wrap(s.updatePage))
			r.Delete("/{id}", s.wrap(s.deletePage))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin(e))
			r.Get("/", s.wrap(s.listUsers))
			r.Post("/", s.wrap(s.createUser))
			r.Get("/{id}", s.wrap(s.getUser))
			r.Put("/{id}", s.wrap(s.updateUser))
			r.Delete("/{id}", s.wrap(s.deleteUser))
		})

		r.Route("/build", func(r chi.Router) {
			r.Use(middleware.RequireDeveloper(e))
			r.With(middleware.RateLimit(e,
				middleware.WithLimit(buildLimit),
				middleware.WithWindow(time.Minute),
			)).Post("/", s.wrap(s.triggerBuild))
			r.Get("/", s.wrap(s.lastBuild))
		})
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = logging.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
