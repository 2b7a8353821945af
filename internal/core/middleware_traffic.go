package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"epigrid/internal/types"
)

// limiterSweepInterval is how often the janitor scans for idle buckets.
const limiterSweepInterval = time.Minute

// limiterIdleEviction is how long a client bucket may sit unused before the
// janitor evicts it. Evicted clients simply get a fresh (full) bucket on
// their next request.
const limiterIdleEviction = 10 * time.Minute

// clientLimiter pairs a token bucket with its last activity timestamp so the
// janitor can evict buckets for clients that went away.
type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-client token buckets backed by
// golang.org/x/time/rate. Clients are keyed by IP address; buckets refill at
// rps tokens per second up to burst. State is in-process, which matches the
// single-instance deployment of each EpiGrid service.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter

	quit     chan struct{}
	stopOnce sync.Once
}

// Decision reports the outcome of a rate limit check for one request.
type Decision struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of whole tokens left in the bucket.
	Remaining int
	// RetryAfter is how long until a token frees up, set only when denied.
	RetryAfter time.Duration
}

// NewRateLimiter creates a limiter and starts its eviction janitor.
// Call Stop to halt the janitor when the server shuts down.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	l := &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		quit:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Burst returns the configured bucket capacity.
func (l *RateLimiter) Burst() int {
	return l.burst
}

// Take spends one token from the client's bucket, creating the bucket on
// first sight. A denied request does not consume a token.
func (l *RateLimiter) Take(key string) Decision {
	now := time.Now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{bucket: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	res := c.bucket.ReserveN(now, 1)
	if !res.OK() {
		// Only possible when burst < 1; no request can ever be granted.
		return Decision{Allowed: false, RetryAfter: time.Second}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		// The token is not available yet. Hand the reservation back instead
		// of queueing the request.
		res.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}
	}
	return Decision{Allowed: true, Remaining: int(c.bucket.TokensAt(now))}
}

// Stop halts the eviction janitor. Safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

func (l *RateLimiter) janitor() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.quit:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *RateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdleEviction {
			delete(l.clients, key)
		}
	}
}

// RateLimit enforces per-client request budgets.
//
// The middleware keys buckets by client IP (X-Forwarded-For aware) and calls
// RateLimiter.Take for every request. If no limiter is configured (e.g.,
// during tests), the middleware passes through.
//
// On every response it sets:
//   - X-RateLimit-Limit: The bucket capacity (burst).
//   - X-RateLimit-Remaining: Whole tokens remaining for this client.
//
// When rate limited, the middleware also sets:
//   - Retry-After: Seconds until the next token frees up.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If no limiter is configured, pass through.
		if s.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := extractClientIP(r)
		decision := s.Limiter.Take(clientIP)

		// Set rate limit headers on every response (allowed or denied).
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.Limiter.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			// Set Retry-After header for 429 responses.
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			requestID := types.GetRequestID(r.Context())
			resp := APIErrorResponse{
				Error: ErrorDetail{
					Code:      string(types.ErrCodeRateLimit),
					Message:   "Rate limit exceeded. Please retry after the reset time.",
					RequestID: requestID,
				},
			}
			JSON(w, r, http.StatusTooManyRequests, resp)
			return
		}

		next.ServeHTTP(w, r)
	})
}
