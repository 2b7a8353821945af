// Package core is the HTTP chassis shared by the aggregator and node
// binaries. It owns the chi router, the global middleware chain (recovery,
// timeouts, request IDs, security headers, logging, CORS, metrics, rate
// limiting), the health endpoint, and the error envelope every handler
// responds with. Domain handlers plug in through route registrars and never
// import this package's internals.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/config"
)

// MetricsCollector records API telemetry. The metrics package supplies the
// Prometheus-backed implementation; tests use a recording fake.
type MetricsCollector interface {
	// ObserveRequest records one completed request under its matched chi
	// route pattern, method, status, and wall time in seconds.
	ObserveRequest(handler, method string, status int, seconds float64)
}

// Server carries everything a running EpiGrid service needs. The two binaries
// build one each with different probes, registrars, and limits.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Optional collaborators. A nil Metrics or Limiter turns the
	// corresponding middleware into a pass-through; an empty HealthProbes
	// slice makes /health report healthy unconditionally.
	Metrics      MetricsCollector
	Limiter      *RateLimiter
	HealthProbes []HealthProbe

	// V1RouteRegistrars attach domain handlers under /v1. The entry point
	// fills this slice before MountRoutes so core never has to import a
	// handler package.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer wires the router and validator around the given config and
// logger. Routes are not mounted here; the caller decides what to register
// and then calls MountRoutes, which is what lets tests mount a probe route
// instead of the full API.
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

// Handler exposes the router as an http.Handler for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi mux for direct route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases chassis-owned resources. Domain resources such as the
// delivery dispatcher belong to the entry point and are stopped there before
// this runs. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if s.Limiter != nil {
		s.Limiter.Stop()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
