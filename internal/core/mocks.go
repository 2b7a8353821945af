package core

import (
	"context"
	"sync"
)

// --- MockMetrics ---

// MockMetrics implements the MetricsCollector interface for testing.
// It records every observation for later assertion.
//
// Usage:
//
//	mock := &MockMetrics{}
//	srv.Metrics = mock
//	// ... drive requests ...
//	calls := mock.Calls()
type MockMetrics struct {
	mu    sync.Mutex
	calls []MetricsCall
}

// MetricsCall captures one ObserveRequest invocation.
type MetricsCall struct {
	Handler string
	Method  string
	Status  int
	Seconds float64
}

// ObserveRequest implements the MetricsCollector interface.
func (m *MockMetrics) ObserveRequest(handler, method string, status int, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MetricsCall{
		Handler: handler,
		Method:  method,
		Status:  status,
		Seconds: seconds,
	})
}

// Calls returns a copy of the recorded observations.
func (m *MockMetrics) Calls() []MetricsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MetricsCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- StaticProbe ---

// StaticProbe implements HealthProbe (and HealthDetailer when Detail is set)
// with fixed outcomes for testing.
//
// Usage:
//
//	probe := &StaticProbe{ProbeName: "store", Detail: map[string]any{"total_data_points": 3}}
//	srv.HealthProbes = []HealthProbe{probe}
//
// To simulate a failing subsystem:
//
//	probe := &StaticProbe{ProbeName: "store", Err: errors.New("wedged")}
//
// To simulate a hung subsystem, set Block and the probe will wait for the
// health check context to expire.
type StaticProbe struct {
	ProbeName string
	Err       error
	Detail    map[string]any

	// Block makes Check wait until the context is cancelled, returning the
	// context error. Used to exercise the health handler's timeout path.
	Block bool
}

// Name implements the HealthProbe interface.
func (p *StaticProbe) Name() string {
	return p.ProbeName
}

// Check implements the HealthProbe interface.
func (p *StaticProbe) Check(ctx context.Context) error {
	if p.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.Err
}

// HealthDetails implements the HealthDetailer interface.
func (p *StaticProbe) HealthDetails() map[string]any {
	return p.Detail
}
