package types

import "time"

// ForecastPoint is a single projected step with its confidence bounds.
// Bounds widen with distance from the last observation.
type ForecastPoint struct {
	Date            time.Time `json:"date"`
	Value           float64   `json:"value"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
}

// ForecastResult is the full answer to a forecast query. A failed model fit
// is reported in-band via Status and Reason, never as a transport error.
// HistoricalWindow only ever contains real observations; synthetic bootstrap
// points used during fitting are excluded and flagged via SyntheticPrefix.
type ForecastResult struct {
	Metric           Metric          `json:"metric"`
	Status           ForecastStatus  `json:"status"`
	Reason           string          `json:"reason,omitempty"`
	HistoricalWindow []SeriesPoint   `json:"historical_data"`
	Points           []ForecastPoint `json:"forecast"`
	SyntheticPrefix  bool            `json:"synthetic_prefix"`
	GeneratedAt      time.Time       `json:"generated_at"`
}
