package types

// Telemetry instrument names for Prometheus.
// All components MUST use these constants.
const (
	MetricHTTPRequestsTotal      = "epigrid_http_requests_total"
	MetricHTTPRequestDuration    = "epigrid_http_request_duration_seconds"
	MetricRecordsTotal           = "epigrid_records_total"
	MetricAggregatesReceived     = "epigrid_aggregates_received_total"
	MetricDeliveriesTotal        = "epigrid_deliveries_total"
	MetricDeliveryQueueDepth     = "epigrid_delivery_queue_depth"
	MetricForecastFitsTotal      = "epigrid_forecast_fits_total"
	MetricForecastFitDuration    = "epigrid_forecast_fit_duration_seconds"

	// Label Keys
	LabelHandler = "handler"
	LabelMethod  = "method"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelMetric  = "metric"
)
