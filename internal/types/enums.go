package types

// Metric identifies a forecastable daily series.
type Metric string

const (
	MetricPatientCount Metric = "patient_count"
	MetricAvgRiskScore Metric = "avg_risk_score"
)

// Valid reports whether the metric is one the aggregator tracks.
func (m Metric) Valid() bool {
	return m == MetricPatientCount || m == MetricAvgRiskScore
}

// AllMetrics lists every series the aggregator maintains.
var AllMetrics = []Metric{MetricPatientCount, MetricAvgRiskScore}

// DeliveryOutcome describes what happened to an aggregate push attempt.
type DeliveryOutcome string

const (
	// DeliveryQueued means the push was handed to the background dispatcher.
	DeliveryQueued DeliveryOutcome = "queued"
	// DeliverySkipped means there was nothing to push (empty reporting window).
	DeliverySkipped DeliveryOutcome = "skipped"
	// DeliveryDropped means the dispatcher queue was full and the push was discarded.
	DeliveryDropped DeliveryOutcome = "dropped"
	// DeliveryDelivered means the aggregator acknowledged the push.
	DeliveryDelivered DeliveryOutcome = "delivered"
	// DeliveryFailed means the push errored. Pushes are never retried.
	DeliveryFailed DeliveryOutcome = "failed"
)

// ForecastStatus discriminates a forecast result envelope.
type ForecastStatus string

const (
	ForecastStatusOK ForecastStatus = "ok"
	// ForecastStatusUnavailable means the model could not be fit on the
	// current series. This is an in-band answer, not a transport failure.
	ForecastStatusUnavailable ForecastStatus = "unavailable"
)
