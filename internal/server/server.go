// Package server provides HTTP server setup and handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"evmarket/internal/config"
	"evmarket/internal/metrics"
	"evmarket/internal/service"
)

// CreativeUploader stores an uploaded ad image and returns its public URL
type CreativeUploader interface {
	Upload(ctx context.Context, accountID string, data []byte) (string, error)
}

// Services bundles the domain services the handlers call
type Services struct {
	Accounts     *service.AccountService
	Renewal      *service.RenewalEngine
	Submission   *service.SubmissionService
	Placement    *service.PlacementService
	Review       *service.ReviewService
	Cancellation *service.CancellationService
	Visibility   *service.VisibilityService
	Reconciler   *service.Reconciler
	History      *service.HistoryService
}

// Deps is everything New needs. Creatives and Gatherer are optional.
type Deps struct {
	Config    *config.Config
	Services  Services
	Creatives CreativeUploader
	Metrics   *metrics.Workflow
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	svc       Services
	creatives CreativeUploader
	metrics   *metrics.Workflow
	gatherer  prometheus.Gatherer
	log       *slog.Logger
	router    *chi.Mux
	http      *http.Server
}

// New creates a new server instance
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config:    deps.Config,
		svc:       deps.Services,
		creatives: deps.Creatives,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		log:       log.With("module", "http"),
		router:    chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         deps.Config.Address(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(deps.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(deps.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.log.Info("server starting", "addr", s.config.Address(), "debug", s.config.Debug)
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			if err := s.http.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}

		s.log.Info("server shutdown complete")
	}

	return nil
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityHeaders)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(30 * time.Second))
}

// securityHeaders adds security-related headers to all responses
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		next.ServeHTTP(w, r)
	})
}

// GetRouter returns the chi router (useful for testing)
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}
