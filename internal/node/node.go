// Package node implements the clinic-side half of the pipeline: a local
// append-only record log, risk scoring at intake, reporting-window
// aggregation with Laplace noise, and fire-and-forget delivery to the
// collector. Raw records never leave the node.
package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"epigrid/internal/privacy"
	"epigrid/internal/risk"
	"epigrid/internal/types"
)

// DefaultReportWindow is the trailing span of local records summarized into
// each aggregate.
const DefaultReportWindow = 7 * 24 * time.Hour

// ErrNoRecentRecords means the reporting window holds no records, so there
// is no aggregate to build. The dispatcher treats this as a skipped push.
var ErrNoRecentRecords = errors.New("no records in reporting window")

// Node owns one clinic's local state. Records accumulate for the lifetime of
// the process; only noised window aggregates are ever shared.
type Node struct {
	id       string
	location types.Location

	mu      sync.RWMutex
	records []types.SymptomRecord

	scorer *risk.Scorer
	mech   *privacy.Mechanism
	clock  types.Clock
}

// New creates a Node at a fixed coordinate. A nil scorer, mechanism, or
// clock falls back to defaults.
func New(id string, location types.Location, scorer *risk.Scorer, mech *privacy.Mechanism, clock types.Clock) *Node {
	if scorer == nil {
		scorer = risk.NewScorer()
	}
	if mech == nil {
		mech = privacy.NewMechanism(privacy.Params{})
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Node{
		id:       id,
		location: location,
		scorer:   scorer,
		mech:     mech,
		clock:    clock,
	}
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.id
}

// Location returns the node's fixed coordinate.
func (n *Node) Location() types.Location {
	return n.location
}

// Record validates and commits one symptom record to the local log, scoring
// it on the way in. A zero timestamp defaults to capture time. The returned
// record carries its assigned ID and risk score.
func (n *Node) Record(symptoms []string, severity int, ts time.Time) (types.SymptomRecord, error) {
	if err := validateSymptoms(symptoms); err != nil {
		return types.SymptomRecord{}, err
	}
	if err := types.ValidateSeverity(severity); err != nil {
		return types.SymptomRecord{}, err
	}
	if ts.IsZero() {
		ts = n.clock.Now()
	}

	rec := types.SymptomRecord{
		ID:        "rec_" + uuid.New().String(),
		Symptoms:  symptoms,
		Severity:  severity,
		RiskScore: n.scorer.Score(symptoms, severity),
		Timestamp: ts.UTC(),
	}

	n.mu.Lock()
	n.records = append(n.records, rec)
	n.mu.Unlock()

	return rec, nil
}

// BuildAggregate summarizes the records inside the trailing window into one
// NodeAggregate. The integrity hash is computed over the unperturbed basis
// first; noise is applied strictly afterwards, independently per metric.
// Returns ErrNoRecentRecords when the window is empty.
func (n *Node) BuildAggregate(window time.Duration) (types.NodeAggregate, error) {
	now := n.clock.Now()
	cutoff := now.Add(-window)

	n.mu.RLock()
	count := 0
	riskSum := 0.0
	for _, rec := range n.records {
		if rec.Timestamp.After(cutoff) {
			count++
			riskSum += rec.RiskScore
		}
	}
	n.mu.RUnlock()

	if count == 0 {
		return types.NodeAggregate{}, ErrNoRecentRecords
	}

	basis := types.AggregateBasis{
		PatientCount: count,
		AvgRiskScore: riskSum / float64(count),
		Location:     n.location,
		Timestamp:    now,
	}

	hash, err := privacy.HashBasis(basis)
	if err != nil {
		return types.NodeAggregate{}, fmt.Errorf("hash aggregate basis: %w", err)
	}

	return types.NodeAggregate{
		NodeID:       n.id,
		PatientCount: n.mech.PerturbCount(float64(basis.PatientCount)),
		AvgRiskScore: n.mech.PerturbScore(basis.AvgRiskScore),
		Location:     n.location,
		Timestamp:    now,
		DataHash:     hash,
	}, nil
}

// Stats reports the node's local state. The true record count never leaves
// the clinic through any other surface.
func (n *Node) Stats() types.NodeStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return types.NodeStats{
		NodeID:       n.id,
		TotalRecords: len(n.records),
		Location:     n.location,
	}
}

func validateSymptoms(symptoms []string) error {
	if len(symptoms) == 0 {
		return types.NewAppError(types.ErrCodeValidationSymptomsEmpty, "at least one symptom is required", nil)
	}
	if len(symptoms) > types.MaxSymptoms {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationPayload,
			fmt.Sprintf("at most %d symptoms per record", types.MaxSymptoms),
			nil,
			map[string]any{"symptoms": len(symptoms)},
		)
	}
	for _, s := range symptoms {
		if s == "" {
			return types.NewAppError(types.ErrCodeValidationSymptomsEmpty, "symptom entries must be non-empty", nil)
		}
		if len(s) > types.MaxSymptomLength {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationPayload,
				fmt.Sprintf("symptom entries are capped at %d characters", types.MaxSymptomLength),
				nil,
				map[string]any{"length": len(s)},
			)
		}
	}
	return nil
}
