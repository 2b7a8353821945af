package types

import "time"

// Location represents a geographic coordinate with an optional display name.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// SymptomRecord is a de-identified patient intake held by a clinic node.
// Raw records never leave the node that created them; only noised window
// aggregates are shared.
type SymptomRecord struct {
	ID        string    `json:"id"`
	Symptoms  []string  `json:"symptoms"`
	Severity  int       `json:"severity"`
	RiskScore float64   `json:"risk_score"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordReceipt is returned to the caller once a record is committed to the
// node's local log. Delivery reflects only whether a push was enqueued; the
// caller is never made to wait on, or learn the outcome of, the upload.
type RecordReceipt struct {
	RecordID  string          `json:"record_id"`
	RiskScore float64         `json:"risk_score"`
	Delivery  DeliveryOutcome `json:"delivery"`
}

// AggregateBasis is the unperturbed tuple an aggregate's integrity hash is
// computed over. Noise is applied strictly after hashing, so the hash commits
// to the true values while the wire carries the noised ones.
type AggregateBasis struct {
	PatientCount int
	AvgRiskScore float64
	Location     Location
	Timestamp    time.Time
}

// NodeAggregate is the only payload a node ever shares with the aggregator:
// a reporting-window summary with independent Laplace noise applied to each
// metric. The hash commits to the pre-noise values and never covers NodeID,
// which exists for attribution, not verification.
type NodeAggregate struct {
	NodeID       string    `json:"node_id"`
	PatientCount float64   `json:"patient_count"`
	AvgRiskScore float64   `json:"avg_risk_score"`
	Location     Location  `json:"location"`
	Timestamp    time.Time `json:"timestamp"`
	DataHash     string    `json:"data_hash"`
}

// StoredAggregate is an accepted aggregate annotated with arrival metadata.
// The store assigns the receipt ID at append time.
type StoredAggregate struct {
	ReceiptID  string        `json:"receipt_id"`
	Aggregate  NodeAggregate `json:"aggregate"`
	ReceivedAt time.Time     `json:"received_at"`
}

// LocationSummary is one spatial cell on the outbreak map: every recent
// aggregate whose coordinates round to the same two-decimal cell.
type LocationSummary struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	PatientCount float64 `json:"patient_count"`
	AvgRiskScore float64 `json:"avg_risk_score"`
	DataPoints   int     `json:"data_points"`
}

// StatsSummary is the aggregator-wide view over the recent window.
// An empty store yields a zero-valued summary, not an error.
type StatsSummary struct {
	TotalPatients   float64           `json:"total_patients"`
	AverageRisk     float64           `json:"average_risk_score"`
	ActiveLocations int               `json:"active_locations"`
	Locations       []LocationSummary `json:"location_data"`
	LastUpdate      *time.Time        `json:"last_update,omitempty"`
}

// NodeStats reports a clinic node's local state.
type NodeStats struct {
	NodeID       string   `json:"node_id"`
	TotalRecords int      `json:"total_records"`
	Location     Location `json:"location"`
}

// SeriesPoint is one calendar day in a metric's daily series. Days with no
// arrivals are absent rather than zero-filled.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
