package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMockMetrics_RecordsCalls(t *testing.T) {
	mock := &MockMetrics{}

	mock.ObserveRequest("/v1/stats", "GET", 200, 0.012)
	mock.ObserveRequest("/v1/aggregates", "POST", 202, 0.034)

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}
	first := calls[0]
	if first.Handler != "/v1/stats" || first.Method != "GET" || first.Status != 200 {
		t.Errorf("unexpected first call: %+v", first)
	}
	if calls[1].Seconds != 0.034 {
		t.Errorf("seconds = %v, want 0.034", calls[1].Seconds)
	}
}

func TestMockMetrics_CallsReturnsCopy(t *testing.T) {
	mock := &MockMetrics{}
	mock.ObserveRequest("/health", "GET", 200, 0.001)

	calls := mock.Calls()
	calls[0].Handler = "mutated"

	if got := mock.Calls()[0].Handler; got != "/health" {
		t.Errorf("internal call mutated through returned slice: %q", got)
	}
}

func TestMockMetrics_ConcurrentObserve(t *testing.T) {
	mock := &MockMetrics{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mock.ObserveRequest("/v1/records", "POST", 201, 0.002)
		}()
	}
	wg.Wait()

	if got := len(mock.Calls()); got != 20 {
		t.Errorf("len(calls) = %d, want 20", got)
	}
}

func TestStaticProbe_Healthy(t *testing.T) {
	probe := &StaticProbe{ProbeName: "store"}

	if probe.Name() != "store" {
		t.Errorf("Name() = %q, want store", probe.Name())
	}
	if err := probe.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestStaticProbe_ReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("store unavailable")
	probe := &StaticProbe{ProbeName: "store", Err: wantErr}

	if err := probe.Check(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Check() = %v, want %v", err, wantErr)
	}
}

func TestStaticProbe_Details(t *testing.T) {
	probe := &StaticProbe{
		ProbeName: "store",
		Detail:    map[string]any{"total_data_points": 3},
	}

	details := probe.HealthDetails()
	if details["total_data_points"] != 3 {
		t.Errorf("details = %v", details)
	}
}

func TestStaticProbe_BlockHonorsContext(t *testing.T) {
	probe := &StaticProbe{ProbeName: "stuck", Block: true}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := probe.Check(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Check() = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Check() blocked for %v, should return at the deadline", elapsed)
	}
}
