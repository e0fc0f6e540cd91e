// Package web exposes the sync pipeline over HTTP: the sync trigger, a
// progress event stream, run history, source listing and a health check.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/evsync/internal/config"
	"github.com/JonMunkholm/evsync/internal/core"
	mw "github.com/JonMunkholm/evsync/internal/web/middleware"
)

// RunLister reads the sync run history.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error)
}

// Pinger checks a backing service for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the optional collaborators of a Server. A nil field disables
// the feature that needs it.
type Deps struct {
	Runs RunLister
	DB   Pinger
}

// Server is the HTTP server for the sync trigger.
type Server struct {
	service *core.Service
	deps    Deps
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server. Rate limiter sweeps run until Shutdown.
func NewServer(service *core.Service, deps Deps, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		deps:    deps,
		cfg:     cfg,
		router:  chi.NewRouter(),
		done:    make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(requestMetadata)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event streams stay open, so they skip the request timeout.
		r.Get("/sync/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/sources", s.handleSources)
			r.Get("/sync/runs", s.handleRuns)

			r.Group(func(r chi.Router) {
				r.Use(mw.APIKeyAuth(&s.cfg.Security))
				if s.cfg.Rate.Enabled {
					r.Use(s.rateLimiter(s.cfg.Rate.SyncLimit).Handler)
				}
				r.Post("/sync", s.handleSync)
				r.Get("/sync", s.handleSync)
			})
		})
	})
}

func (s *Server) rateLimiter(perMinute int) *mw.RateLimiter {
	rl := mw.NewRateLimiter(perMinute, time.Minute)
	go rl.Run(s.done)
	return rl
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps event streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background sweeps.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders sets headers for a JSON-only API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
