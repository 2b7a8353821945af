// Package metrics holds the Prometheus instruments shared by the node and
// collector binaries. Both register into a caller-supplied registry; a nil
// registry yields a detached collector, which keeps tests and tools silent.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"epigrid/internal/types"
)

// Collector bundles every instrument the pipeline emits. Instrument names
// live in types so handlers and dashboards agree on them.
type Collector struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RecordsTotal       prometheus.Counter
	AggregatesReceived prometheus.Counter

	Deliveries *prometheus.CounterVec
	QueueDepth prometheus.Gauge

	ForecastFits *prometheus.CounterVec
	FitDuration  *prometheus.HistogramVec
}

// NewCollector registers all instruments with reg. A nil reg falls back to a
// private registry that is never scraped.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Collector{
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: types.MetricHTTPRequestsTotal,
			Help: "HTTP requests served, by handler, method, and status.",
		}, []string{types.LabelHandler, types.LabelMethod, types.LabelStatus}),

		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    types.MetricHTTPRequestDuration,
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{types.LabelHandler, types.LabelMethod}),

		RecordsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: types.MetricRecordsTotal,
			Help: "Symptom records committed to the local log.",
		}),

		AggregatesReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: types.MetricAggregatesReceived,
			Help: "Aggregates accepted by the collector.",
		}),

		Deliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: types.MetricDeliveriesTotal,
			Help: "Aggregate push attempts, by outcome.",
		}, []string{types.LabelOutcome}),

		QueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: types.MetricDeliveryQueueDepth,
			Help: "Pending triggers on the delivery queue.",
		}),

		ForecastFits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: types.MetricForecastFitsTotal,
			Help: "Forecast model fits, by metric and status.",
		}, []string{types.LabelMetric, types.LabelStatus}),

		FitDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    types.MetricForecastFitDuration,
			Help:    "Forecast fit latency in seconds.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{types.LabelMetric}),
	}
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(handler, method string, status int, seconds float64) {
	c.HTTPRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(handler, method).Observe(seconds)
}

// RecordAccepted counts one committed symptom record.
func (c *Collector) RecordAccepted() {
	c.RecordsTotal.Inc()
}

// AggregateAccepted counts one stored aggregate.
func (c *Collector) AggregateAccepted() {
	c.AggregatesReceived.Inc()
}

// ObservePush counts one delivery cycle outcome.
func (c *Collector) ObservePush(outcome types.DeliveryOutcome) {
	c.Deliveries.WithLabelValues(string(outcome)).Inc()
}

// ObserveQueueDepth tracks the delivery queue's pending trigger count.
func (c *Collector) ObserveQueueDepth(depth int) {
	c.QueueDepth.Set(float64(depth))
}

// ObserveFit records one forecast fit attempt.
func (c *Collector) ObserveFit(metric types.Metric, status string, seconds float64) {
	c.ForecastFits.WithLabelValues(string(metric), status).Inc()
	c.FitDuration.WithLabelValues(string(metric)).Observe(seconds)
}
