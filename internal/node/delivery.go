package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"epigrid/internal/types"
)

// Delivery defaults. Pushes are bounded by PushTimeout and never retried; a
// failed cycle is simply superseded by the next one.
const (
	DefaultPushTimeout = 10 * time.Second
	DefaultQueueSize   = 64
)

// PushAck is the collector's acknowledgement of an accepted aggregate.
type PushAck struct {
	Status     string `json:"status"`
	DataPoints int    `json:"data_points"`
}

// Pusher delivers one aggregate to the collector over HTTP. A circuit
// breaker sheds pushes while the collector is down so a dead endpoint does
// not cost every cycle a full timeout.
type Pusher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*PushAck]
	timeout time.Duration
}

// NewPusher creates a Pusher for the collector at baseURL. A nil client
// falls back to http.DefaultClient; a non-positive timeout falls back to
// DefaultPushTimeout.
func NewPusher(baseURL string, client *http.Client, timeout time.Duration) *Pusher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	cb := gobreaker.NewCircuitBreaker[*PushAck](gobreaker.Settings{
		Name:        "aggregate-push",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return &Pusher{
		baseURL: baseURL,
		client:  client,
		breaker: cb,
		timeout: timeout,
	}
}

// BreakerState reports the circuit breaker's current state name.
func (p *Pusher) BreakerState() string {
	return p.breaker.State().String()
}

// Push sends the aggregate and returns the collector's acknowledgement.
// The attempt is bounded by the push timeout; there is no retry.
func (p *Pusher) Push(ctx context.Context, agg types.NodeAggregate) (*PushAck, error) {
	body, err := json.Marshal(agg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode aggregate", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ack, err := p.breaker.Execute(func() (*PushAck, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/aggregates", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := p.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("collector returned %d", resp.StatusCode)
		}

		var decoded PushAck
		if decErr := json.NewDecoder(resp.Body).Decode(&decoded); decErr != nil {
			return nil, fmt.Errorf("decode acknowledgement: %w", decErr)
		}
		return &decoded, nil
	})
	if err != nil {
		return nil, mapPushError(ctx, err)
	}
	return ack, nil
}

func mapPushError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeDeliveryCircuitOpen, "collector circuit is open", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeDeliveryTimeout, "push timed out", err)
	default:
		return types.NewAppError(types.ErrCodeDeliveryPushFailed, "push failed", err)
	}
}

// AggregateBuilder supplies the dispatcher with fresh window aggregates.
type AggregateBuilder interface {
	BuildAggregate(window time.Duration) (types.NodeAggregate, error)
}

// AggregateSender delivers a built aggregate to the collector.
type AggregateSender interface {
	Push(ctx context.Context, agg types.NodeAggregate) (*PushAck, error)
}

// DeliveryObserver counts push outcomes and queue depth for telemetry.
type DeliveryObserver interface {
	ObservePush(outcome types.DeliveryOutcome)
	ObserveQueueDepth(depth int)
}

// DispatcherConfig holds the wiring for a Dispatcher. Window and QueueSize
// fall back to defaults when zero; Observer may be nil.
type DispatcherConfig struct {
	Builder   AggregateBuilder
	Sender    AggregateSender
	Window    time.Duration
	QueueSize int
	Logger    *slog.Logger
	Observer  DeliveryObserver
}

// Dispatcher runs aggregate delivery as a detached background task. Each
// trigger is a token on a bounded queue; the worker builds a fresh aggregate
// at send time so every push reflects the current window. Ingestion is never
// blocked by delivery: a full queue drops the trigger.
type Dispatcher struct {
	builder  AggregateBuilder
	sender   AggregateSender
	window   time.Duration
	logger   *slog.Logger
	observer DeliveryObserver

	triggers chan struct{}
	quit     chan struct{}
	wg       sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a stopped Dispatcher. Call Start before Trigger.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultReportWindow
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		builder:  cfg.Builder,
		sender:   cfg.Sender,
		window:   cfg.Window,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		triggers: make(chan struct{}, cfg.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Shutdown stops accepting triggers and waits for the in-flight push, if
// any, to finish or time out.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.quit)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth reports the pending trigger count.
func (d *Dispatcher) QueueDepth() int {
	return len(d.triggers)
}

// Trigger requests one delivery cycle and returns immediately. The caller
// learns only whether the trigger was queued or dropped, never the delivery
// outcome.
func (d *Dispatcher) Trigger() types.DeliveryOutcome {
	select {
	case <-d.quit:
		return types.DeliveryDropped
	default:
	}

	select {
	case d.triggers <- struct{}{}:
		d.observeDepth(len(d.triggers))
		return types.DeliveryQueued
	default:
		d.logger.Warn("delivery queue full, dropping trigger")
		d.observe(types.DeliveryDropped)
		return types.DeliveryDropped
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case <-d.triggers:
			d.observeDepth(len(d.triggers))
			d.deliver()
		}
	}
}

// deliver builds and pushes one aggregate. Failures are logged and counted,
// never propagated: the record that triggered this cycle was already
// committed locally.
func (d *Dispatcher) deliver() {
	agg, err := d.builder.BuildAggregate(d.window)
	if err != nil {
		if errors.Is(err, ErrNoRecentRecords) {
			d.observe(types.DeliverySkipped)
			return
		}
		d.logger.Error("aggregate build failed", "error", err)
		d.observe(types.DeliveryFailed)
		return
	}

	ack, err := d.sender.Push(context.Background(), agg)
	if err != nil {
		d.logger.Warn("aggregate push failed",
			"error", err,
			"node_id", agg.NodeID,
		)
		d.observe(types.DeliveryFailed)
		return
	}

	d.logger.Info("aggregate delivered",
		"node_id", agg.NodeID,
		"collector_status", ack.Status,
		"collector_data_points", ack.DataPoints,
	)
	d.observe(types.DeliveryDelivered)
}

func (d *Dispatcher) observe(outcome types.DeliveryOutcome) {
	if d.observer != nil {
		d.observer.ObservePush(outcome)
	}
}

func (d *Dispatcher) observeDepth(depth int) {
	if d.observer != nil {
		d.observer.ObserveQueueDepth(depth)
	}
}
