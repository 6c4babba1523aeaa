// Package core provides the HTTP chassis for the Growgent map service. It
// builds a chi router and enforces the cross-cutting concerns (panic
// recovery, request ids, logging, CORS, metrics, rate limiting and
// compression) before requests reach domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"growgent/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records one request. endpoint is the matched route
	// pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP API so tests can inject their own.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Metrics        MetricsCollector
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by main to keep core free of handler imports.
	V1RouteRegistrars []func(chi.Router)

	// Closers run in order on Shutdown.
	Closers []func(ctx context.Context) error

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller mounts routes
// with MountRoutes after filling in the optional dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router wrapped in gzip compression. WebSocket upgrades
// bypass the compressor so the connection can be hijacked.
func (s *Server) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(s.router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsWebSocketUpgrade(r) {
			s.router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered closers and reports every failure.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, closeFn := range s.Closers {
		if err := closeFn(ctx); err != nil {
			s.Logger.Error("error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
