package handlers

import "context"

// StoreCounter is the store slice its health probe reads.
type StoreCounter interface {
	Len() int
	DayCount() int
}

// StoreProbe reports the aggregate store's size. The store is in-memory and
// cannot fail, so the probe is always healthy and the counts ride along as
// details.
type StoreProbe struct {
	Store StoreCounter
}

// Name identifies the probe in the health response.
func (p *StoreProbe) Name() string { return "store" }

// Check always passes.
func (p *StoreProbe) Check(_ context.Context) error { return nil }

// HealthDetails surfaces the log length and the series day count.
func (p *StoreProbe) HealthDetails() map[string]any {
	return map[string]any{
		"total_data_points": p.Store.Len(),
		"time_series_days":  p.Store.DayCount(),
	}
}

// FitPoolReadier blocks until forecast capacity is available.
type FitPoolReadier interface {
	Ready(ctx context.Context) error
}

// ForecastProbe fails the health check when the fit pool cannot free a slot
// before the probe deadline.
type ForecastProbe struct {
	Engine FitPoolReadier
}

// Name identifies the probe in the health response.
func (p *ForecastProbe) Name() string { return "forecaster" }

// Check acquires and releases one fit slot.
func (p *ForecastProbe) Check(ctx context.Context) error {
	return p.Engine.Ready(ctx)
}

// NodeProbe reports the clinic node's local record count.
type NodeProbe struct {
	Node RecordIntake
}

// Name identifies the probe in the health response.
func (p *NodeProbe) Name() string { return "node" }

// Check always passes.
func (p *NodeProbe) Check(_ context.Context) error { return nil }

// HealthDetails surfaces the node identity and record count.
func (p *NodeProbe) HealthDetails() map[string]any {
	stats := p.Node.Stats()
	return map[string]any{
		"node_id":       stats.NodeID,
		"total_records": stats.TotalRecords,
	}
}

// DeliveryStatus exposes the delivery queue's observable state.
type DeliveryStatus interface {
	QueueDepth() int
}

// BreakerStatus exposes the push breaker's state.
type BreakerStatus interface {
	BreakerState() string
}

// DeliveryProbe reports the delivery queue depth and breaker state as
// details. A down collector never marks the node unhealthy.
type DeliveryProbe struct {
	Dispatcher DeliveryStatus
	Pusher     BreakerStatus
}

// Name identifies the probe in the health response.
func (p *DeliveryProbe) Name() string { return "delivery" }

// Check always passes.
func (p *DeliveryProbe) Check(_ context.Context) error { return nil }

// HealthDetails surfaces the pending trigger count and breaker state.
func (p *DeliveryProbe) HealthDetails() map[string]any {
	return map[string]any{
		"queue_depth":   p.Dispatcher.QueueDepth(),
		"breaker_state": p.Pusher.BreakerState(),
	}
}
