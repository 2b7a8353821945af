package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/types"
)

// responseCapture records the status a handler wrote so logging and metrics
// middleware can observe it after the chain returns.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

// Write treats a body written before any explicit WriteHeader as the
// implicit 200 that net/http sends in that case.
func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.WriteHeader(http.StatusOK)
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// Recoverer converts a handler panic into a logged stack trace and a plain
// 500 envelope. It sits outermost in the chain so nothing escapes it; a
// panicking forecast fit must not take the whole server down with it.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			s.Logger.Error("panic recovered",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("panic", fmt.Sprintf("%v", rvr)),
				slog.String("stack", string(debug.Stack())),
			)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			writePanicBody(w, types.GetRequestID(r.Context()))
		}()

		next.ServeHTTP(w, r)
	})
}

// writePanicBody emits the 500 envelope by hand. json.Marshal is avoided
// here: the recovery path must not be able to panic again.
func writePanicBody(w http.ResponseWriter, requestID string) {
	body := fmt.Sprintf(
		`{"error":{"code":"%s","message":"an unexpected error occurred","request_id":"%s"}}`,
		escapeJSON(string(types.ErrCodeInternalUnexpected)),
		escapeJSON(requestID),
	)
	_, _ = w.Write([]byte(body))
}

// RequestLogger emits one structured line per request: method, path, status,
// duration, remote address, request ID, and the request headers with the
// configured sensitive ones masked.
func RequestLogger(logger *slog.Logger, redactedHeaders []string) func(http.Handler) http.Handler {
	redacted := make(map[string]struct{}, len(redactedHeaders))
	for _, name := range redactedHeaders {
		redacted[strings.ToLower(name)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rc, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if id := types.GetRequestID(r.Context()); id != "" {
				args = append(args, slog.String("request_id", id))
			}
			if len(r.Header) > 0 {
				args = append(args, slog.Group("headers", headerArgs(r.Header, redacted)...))
			}

			const msg = "request completed"
			switch {
			case rc.statusCode >= http.StatusInternalServerError:
				logger.Error(msg, args...)
			case rc.statusCode >= http.StatusBadRequest:
				logger.Warn(msg, args...)
			default:
				logger.Info(msg, args...)
			}
		})
	}
}

// headerArgs renders request headers as log attributes, masking the values
// of any header in the redacted set.
func headerArgs(header http.Header, redacted map[string]struct{}) []any {
	args := make([]any, 0, len(header))
	for name, values := range header {
		if _, masked := redacted[strings.ToLower(name)]; masked {
			args = append(args, slog.String(name, "[REDACTED]"))
			continue
		}
		args = append(args, slog.String(name, strings.Join(values, ", ")))
	}
	return args
}

// MetricsMiddleware times every request and reports it to the server's
// collector under the matched chi route pattern rather than the raw path,
// which would blow up label cardinality on routes like
// /v1/forecasts/{metric}. A server without a collector runs the chain
// untouched.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rc, r)

		handler := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			handler = rctx.RoutePattern()
		}
		s.Metrics.ObserveRequest(handler, r.Method, rc.statusCode, time.Since(start).Seconds())
	})
}

// jsonEscaper covers the characters that would break a hand-built JSON
// string. Only trusted chassis strings pass through it.
var jsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeJSON(s string) string {
	return jsonEscaper.Replace(s)
}
