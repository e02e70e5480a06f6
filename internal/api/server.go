// Package api serves the cleanup hook API: host lifecycle hooks, explicit
// phase runs, dry-run plans and the run log.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/mattjoyce/wsclean/internal/auth"
	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/inventory"
	"github.com/mattjoyce/wsclean/internal/runlog"
)

// Cleaner runs and plans cleanup phases. *cleanup.Orchestrator implements it.
type Cleaner interface {
	Run(ctx context.Context, phase fleet.Phase, build cleanup.BuildContext) (cleanup.Result, error)
	Hook(ctx context.Context, event cleanup.HookEvent, build cleanup.BuildContext) (cleanup.Result, bool, error)
	Plan(ctx context.Context, build cleanup.BuildContext) (*cleanup.Multimap, error)
}

// Inventory looks up jobs and records builds announced by hooks.
type Inventory interface {
	Job(ctx context.Context, name string) (fleet.Job, error)
	RecordBuild(ctx context.Context, u inventory.BuildUpdate) error
}

// RunLog lists persisted runs.
type RunLog interface {
	List(ctx context.Context, f runlog.Filter) ([]runlog.Entry, error)
}

// Locker serialises runs of the same job. The returned func releases the lock.
type Locker func(job string) (release func() error, err error)

// Config holds API server configuration
type Config struct {
	Listen string
	// Keys authenticates bearer tokens. Nil rejects every /v1 request.
	Keys              *auth.Keyring
	MaxConcurrentRuns int
	// Metrics, when set, is served unauthenticated at /metrics.
	Metrics http.Handler
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	cleaner   Cleaner
	inventory Inventory
	runs      RunLog
	lock      Locker
	keys      *auth.Keyring
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	slots     *semaphore.Weighted
	active    atomic.Int64
}

// New creates a new API server instance. A nil lock disables per-job locking.
func New(config Config, cleaner Cleaner, inv Inventory, runs RunLog, lock Locker, logger *slog.Logger) *Server {
	if config.MaxConcurrentRuns <= 0 {
		config.MaxConcurrentRuns = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lock == nil {
		lock = func(string) (func() error, error) { return func() error { return nil }, nil }
	}
	keys := config.Keys
	if keys == nil {
		keys = &auth.Keyring{}
	}
	return &Server{
		config:    config,
		cleaner:   cleaner,
		inventory: inv,
		runs:      runs,
		lock:      lock,
		keys:      keys,
		logger:    logger,
		startedAt: time.Now(),
		slots:     semaphore.NewWeighted(int64(config.MaxConcurrentRuns)),
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.config.Listen,
		Handler: s.setupRoutes(),
		// Runs can take as long as the cleanup timeout.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.allow(auth.ActionCleanup)).Post("/jobs/{job}/cleanup/{phase}", s.handleCleanup)
		r.With(s.allow(auth.ActionPlan)).Get("/jobs/{job}/plan", s.handlePlan)
		r.With(s.allow(auth.ActionHook)).Post("/hooks/{event}", s.handleHook)
		r.With(s.allow(auth.ActionListRuns)).Get("/runs", s.handleListRuns)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
