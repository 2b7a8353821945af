// Package store holds every aggregate the collector has accepted. The log is
// append-only and arrival-ordered; nothing is ever mutated or deleted, and a
// calendar-day index is maintained for series building.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"epigrid/internal/types"
)

// AggregateStore is the collector's in-memory log of accepted aggregates.
// All access is serialized through an RWMutex so concurrent pushes and reads
// can never interleave a partial append with an iteration.
type AggregateStore struct {
	mu    sync.RWMutex
	log   []types.StoredAggregate
	byDay map[time.Time][]int
	clock types.Clock
}

// New creates an empty store. A nil clock falls back to real UTC time.
func New(clock types.Clock) *AggregateStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AggregateStore{
		byDay: make(map[time.Time][]int),
		clock: clock,
	}
}

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Append accepts an aggregate unconditionally and returns the stored row and
// the new log length. Duplicates are allowed: every push is stored under a
// fresh receipt ID. The day index is keyed by arrival date, so a backdated
// payload timestamp cannot rewrite history the series was already built on.
func (s *AggregateStore) Append(agg types.NodeAggregate) (types.StoredAggregate, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := types.StoredAggregate{
		ReceiptID:  "agg_" + uuid.New().String(),
		Aggregate:  agg,
		ReceivedAt: s.clock.Now(),
	}
	s.log = append(s.log, stored)

	day := dayOf(stored.ReceivedAt)
	s.byDay[day] = append(s.byDay[day], len(s.log)-1)

	return stored, len(s.log)
}

// Recent returns the aggregates whose own timestamps fall inside the
// trailing window, preserving arrival order.
func (s *AggregateStore) Recent(window time.Duration) []types.StoredAggregate {
	cutoff := s.clock.Now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.StoredAggregate, 0, len(s.log))
	for _, stored := range s.log {
		if stored.Aggregate.Timestamp.After(cutoff) {
			out = append(out, stored)
		}
	}
	return out
}

// DailySeries builds the metric's calendar-day series in date order. Patient
// counts sum within a day; risk scores average. Days with no arrivals are
// simply absent, the series is never gap-filled with zeros.
func (s *AggregateStore) DailySeries(metric types.Metric) []types.SeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make([]time.Time, 0, len(s.byDay))
	for day := range s.byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]types.SeriesPoint, 0, len(days))
	for _, day := range days {
		idxs := s.byDay[day]
		var sum float64
		for _, i := range idxs {
			switch metric {
			case types.MetricAvgRiskScore:
				sum += s.log[i].Aggregate.AvgRiskScore
			default:
				sum += s.log[i].Aggregate.PatientCount
			}
		}
		value := sum
		if metric == types.MetricAvgRiskScore {
			value = sum / float64(len(idxs))
		}
		series = append(series, types.SeriesPoint{Date: day, Value: value})
	}
	return series
}

// Snapshot copies the full arrival-ordered log.
func (s *AggregateStore) Snapshot() []types.StoredAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.StoredAggregate, len(s.log))
	copy(out, s.log)
	return out
}

// Len returns the number of aggregates accepted so far.
func (s *AggregateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// DayCount returns the number of distinct calendar days in the index.
func (s *AggregateStore) DayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDay)
}
