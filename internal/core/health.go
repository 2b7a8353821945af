package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole probe fan-out. A dependency that cannot
// answer inside it is reported as down rather than holding the endpoint open.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is one subsystem's health check: the aggregate store, the fit
// pool, the node's record log, the delivery path.
type HealthProbe interface {
	// Name identifies the component in the health response ("store",
	// "delivery", ...).
	Name() string

	// Check reports whether the subsystem is serviceable. It must honor the
	// context deadline.
	Check(ctx context.Context) error
}

// HealthDetailer is optionally implemented by probes that expose gauge-style
// readings alongside their status, such as the store's aggregate count and
// series day count.
type HealthDetailer interface {
	HealthDetails() map[string]any
}

type componentStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every registered probe concurrently under a shared
// deadline and reports 200 when all pass, 503 when any fails or times out.
// Mounted at GET /health on both servers.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	type outcome struct {
		name string
		err  error
	}

	// The channel is buffered to len(probes) so goroutines that finish after
	// the deadline can still send and exit instead of leaking.
	outcomes := make(chan outcome, len(probes))
	for _, probe := range probes {
		go func(p HealthProbe) {
			outcomes <- outcome{name: p.Name(), err: runProbe(ctx, p)}
		}(probe)
	}

	completed := make(map[string]error, len(probes))
collect:
	for range probes {
		select {
		case o := <-outcomes:
			completed[o.name] = o.err
		case <-ctx.Done():
			break collect
		}
	}

	components := make(map[string]componentStatus, len(probes))
	healthy := true
	for _, probe := range probes {
		name := probe.Name()
		err, done := completed[name]
		switch {
		case !done:
			healthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case err != nil:
			healthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: err.Error()}
		default:
			cs := componentStatus{Status: "healthy"}
			if d, ok := probe.(HealthDetailer); ok {
				cs.Details = d.HealthDetails()
			}
			components[name] = cs
		}
	}

	resp := healthResponse{Status: "healthy", Components: components}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

// runProbe shields the handler from a panicking probe. A broken subsystem
// must report unhealthy, not crash the health endpoint.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
