// Package spatial groups recent aggregates into coarse geographic cells for
// the outbreak map. Cells are keyed by coordinates rounded to two decimals,
// roughly neighborhood-sized, which is also the only spatial resolution the
// collector ever exposes.
package spatial

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"epigrid/internal/types"
)

// AggregateSource supplies the recent window of stored aggregates.
type AggregateSource interface {
	Recent(window time.Duration) []types.StoredAggregate
}

// Aggregator computes windowed statistics and map cells over a source.
type Aggregator struct {
	source AggregateSource
}

// NewAggregator creates an Aggregator over the given source.
func NewAggregator(source AggregateSource) *Aggregator {
	return &Aggregator{source: source}
}

// CellKey renders the cell identifier for a coordinate pair. Aggregates whose
// coordinates format identically at two decimals share a cell.
func CellKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// parseCellKey recovers the rounded coordinates from a key produced by
// CellKey. Keys are self-generated, so parse failures cannot occur.
func parseCellKey(key string) (float64, float64) {
	parts := strings.SplitN(key, ",", 2)
	lat, _ := strconv.ParseFloat(parts[0], 64)
	lon, _ := strconv.ParseFloat(parts[1], 64)
	return lat, lon
}

// Stats returns the collector-wide summary over the trailing window. An
// empty window yields a zero-valued summary, never an error.
func (a *Aggregator) Stats(window time.Duration) types.StatsSummary {
	recent := a.source.Recent(window)
	summary := types.StatsSummary{Locations: []types.LocationSummary{}}
	if len(recent) == 0 {
		return summary
	}

	var total, riskSum float64
	for _, stored := range recent {
		total += stored.Aggregate.PatientCount
		riskSum += stored.Aggregate.AvgRiskScore
	}

	summary.TotalPatients = total
	summary.AverageRisk = riskSum / float64(len(recent))
	summary.Locations = summarize(recent)
	summary.ActiveLocations = len(summary.Locations)

	last := recent[len(recent)-1].Aggregate.Timestamp
	summary.LastUpdate = &last

	return summary
}

// MapData returns the per-cell summaries over the trailing window, ordered
// deterministically by cell key.
func (a *Aggregator) MapData(window time.Duration) []types.LocationSummary {
	return summarize(a.source.Recent(window))
}

type cellAccumulator struct {
	lat     float64
	lon     float64
	count   float64
	riskSum float64
	members int
}

// summarize folds aggregates into cells. Counts sum, risk scores average,
// and members counts contributing aggregates (not patients). Output order is
// lexicographic by cell key so repeated calls over the same window agree.
func summarize(recent []types.StoredAggregate) []types.LocationSummary {
	groups := make(map[string]*cellAccumulator)
	for _, stored := range recent {
		key := CellKey(stored.Aggregate.Location.Lat, stored.Aggregate.Location.Lon)
		cell, ok := groups[key]
		if !ok {
			lat, lon := parseCellKey(key)
			cell = &cellAccumulator{lat: lat, lon: lon}
			groups[key] = cell
		}
		cell.count += stored.Aggregate.PatientCount
		cell.riskSum += stored.Aggregate.AvgRiskScore
		cell.members++
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]types.LocationSummary, 0, len(keys))
	for _, key := range keys {
		cell := groups[key]
		out = append(out, types.LocationSummary{
			Lat:          cell.lat,
			Lon:          cell.lon,
			PatientCount: cell.count,
			AvgRiskScore: cell.riskSum / float64(cell.members),
			DataPoints:   cell.members,
		})
	}
	return out
}
