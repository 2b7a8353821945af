package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"epigrid/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// Forecast fits and export streams both finish well inside this bound; it
// exists so a stuck client cannot pin a handler goroutine forever.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs. EpiGrid endpoints are unauthenticated, but proxies and browsers still
// attach credentials that must not reach the log stream.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the /v1 API group, the
// health check, and the typed 404/405 fallbacks.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)
	s.router.Get("/health", s.HandleHealth)

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer        - outermost so no panic escapes.
//  2. ContextTimeout   - soft deadline on every request.
//  3. RequestID        - correlation ID for tracing.
//  4. SecurityHeaders  - on every response, including errors.
//  5. RequestLogger    - structured logging (redacted headers).
//  6. CORS             - browser preflight handling.
//  7. Metrics          - request latency and count recording.
//  8. RateLimit        - last, so rejected bursts still appear in logs
//     and metrics.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(
		s.Recoverer,
		ContextTimeoutMiddleware(defaultRequestTimeout),
		RequestIDMiddleware,
		s.SecurityHeadersMiddleware,
		RequestLogger(s.Logger, s.redactedHeaders()),
		NewCORSMiddleware(s.corsAllowedOrigins()),
		s.MetricsMiddleware,
		s.RateLimit,
	)
}

// mountV1 hands the /v1 group to the registrar functions the entry point
// collected. The indirection keeps core free of handler imports.
func (s *Server) mountV1(r chi.Router) {
	for _, register := range s.V1RouteRegistrars {
		register(r)
	}
}

func (s *Server) redactedHeaders() []string {
	return defaultRedactedHeaders
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config == nil || len(s.Config.Security.CorsAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.Config.Security.CorsAllowedOrigins
}

// handleNotFound returns the structured 404 body for unknown routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
}

// handleMethodNotAllowed returns a structured 405 for known routes hit with
// the wrong method. The route code is reused so clients see one error shape
// for "this URL does nothing".
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeNotFoundRoute),
			Message:   "method not allowed for this route",
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}

// ContextTimeoutMiddleware puts a deadline on the request context. What the
// client sees when it fires is up to the handler's cancellation behavior.
func ContextTimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id header or mints a
// fresh UUID, stores the ID in the context for logs and error envelopes,
// and echoes it on the response so clients can correlate.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}
