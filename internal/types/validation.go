package types

import "fmt"

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0

	MinSeverity = 1
	MaxSeverity = 10

	MaxSymptoms      = 50
	MaxSymptomLength = 200

	MinForecastHorizon = 1
	MaxForecastHorizon = 90
)

// ParseMetric converts a raw path or query value into a Metric.
// Unknown metrics are rejected before any series work happens.
func ParseMetric(raw string) (Metric, error) {
	m := Metric(raw)
	if !m.Valid() {
		return "", NewAppErrorWithDetails(
			ErrCodeValidationInvalidMetric,
			fmt.Sprintf("invalid metric %q, use %q or %q", raw, MetricPatientCount, MetricAvgRiskScore),
			nil,
			map[string]any{"metric": raw},
		)
	}
	return m, nil
}

// ValidateSeverity checks the inclusive 1-10 scale.
func ValidateSeverity(severity int) error {
	if severity < MinSeverity || severity > MaxSeverity {
		return NewAppErrorWithDetails(
			ErrCodeValidationSeverityRange,
			fmt.Sprintf("severity must be between %d and %d", MinSeverity, MaxSeverity),
			nil,
			map[string]any{"severity": severity},
		)
	}
	return nil
}

// ValidateHorizon checks a forecast horizon in days.
func ValidateHorizon(days int) error {
	if days < MinForecastHorizon || days > MaxForecastHorizon {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidHorizon,
			fmt.Sprintf("horizon must be between %d and %d days", MinForecastHorizon, MaxForecastHorizon),
			nil,
			map[string]any{"horizon": days},
		)
	}
	return nil
}
