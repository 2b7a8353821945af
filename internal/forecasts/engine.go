package forecasts

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/semaphore"

	"epigrid/internal/types"
)

// Engine defaults, applied when Config fields are left zero.
const (
	DefaultMinHistory      = 10
	DefaultBootstrapTarget = 30
	DefaultConfidence      = 0.95
	DefaultFitConcurrency  = 4

	// historicalWindowDays bounds the real observations echoed back with a
	// forecast. Synthetic bootstrap points are never included.
	historicalWindowDays = 14

	countBaseline = 50.0
	riskBaseline  = 0.3
	jitterFactor  = 0.2
)

// Unavailability reasons reported in-band on a failed fit.
const (
	ReasonInsufficientHistory = "insufficient_history"
	ReasonModelFit            = "model_fit_failed"
)

// SeriesSource supplies the calendar-day series for a metric.
type SeriesSource interface {
	DailySeries(metric types.Metric) []types.SeriesPoint
}

// FitObserver records fit outcomes and durations for telemetry.
type FitObserver interface {
	ObserveFit(metric types.Metric, status string, seconds float64)
}

// Config tunes the engine. Zero fields fall back to defaults; set
// BootstrapTarget negative to disable synthetic history entirely.
type Config struct {
	MinHistory      int
	BootstrapTarget int
	Confidence      float64
	FitConcurrency  int64
}

// Engine fits per-request models over a series source. Fits acquire a
// weighted semaphore so a burst of forecast queries cannot monopolize the
// process while aggregate pushes are arriving.
type Engine struct {
	source   SeriesSource
	cfg      Config
	clock    types.Clock
	logger   *slog.Logger
	observer FitObserver
	sem      *semaphore.Weighted
	noise    func() float64
}

// NewEngine creates an Engine. Clock, logger, and observer may be nil.
func NewEngine(source SeriesSource, cfg Config, clock types.Clock, logger *slog.Logger, observer FitObserver) *Engine {
	return NewEngineWithNoise(source, cfg, clock, logger, observer, rand.NormFloat64)
}

// NewEngineWithNoise is NewEngine with an injected standard-normal source
// for the bootstrap jitter. Tests pass a seeded generator.
func NewEngineWithNoise(source SeriesSource, cfg Config, clock types.Clock, logger *slog.Logger, observer FitObserver, noise func() float64) *Engine {
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = DefaultMinHistory
	}
	if cfg.BootstrapTarget == 0 {
		cfg.BootstrapTarget = DefaultBootstrapTarget
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = DefaultConfidence
	}
	if cfg.FitConcurrency <= 0 {
		cfg.FitConcurrency = DefaultFitConcurrency
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if noise == nil {
		noise = rand.NormFloat64
	}
	return &Engine{
		source:   source,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		observer: observer,
		sem:      semaphore.NewWeighted(cfg.FitConcurrency),
		noise:    noise,
	}
}

// Forecast fits the metric's daily series and projects horizon steps ahead.
// A fit failure is an in-band unavailable result with a nil error; errors are
// reserved for invalid input and pool acquisition.
func (e *Engine) Forecast(ctx context.Context, metric types.Metric, horizon int) (*types.ForecastResult, error) {
	if _, err := types.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if err := types.ValidateHorizon(horizon); err != nil {
		return nil, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "forecast fit pool unavailable", err)
	}
	defer e.sem.Release(1)

	started := time.Now()

	observed := e.source.DailySeries(metric)
	values, synthetic := e.buildFitSeries(metric, observed)

	result := &types.ForecastResult{
		Metric:           metric,
		HistoricalWindow: tailPoints(observed, historicalWindowDays),
		SyntheticPrefix:  synthetic,
		GeneratedAt:      e.clock.Now(),
	}

	model, err := fitARIMA111(values)
	if err != nil {
		result.Status = types.ForecastStatusUnavailable
		result.Reason = unavailableReason(err)
		result.Points = []types.ForecastPoint{}
		e.logger.Warn("forecast fit failed",
			"metric", string(metric),
			"reason", result.Reason,
			"series_len", len(values),
			"real_points", len(observed),
		)
		e.observeFit(metric, string(types.ForecastStatusUnavailable), time.Since(started))
		return result, nil
	}

	steps := model.forecast(horizon)
	z := zScore(e.cfg.Confidence)
	anchor := e.anchorDate(observed)

	points := make([]types.ForecastPoint, 0, len(steps))
	for i, step := range steps {
		half := z * step.stderr
		points = append(points, types.ForecastPoint{
			Date:            anchor.AddDate(0, 0, i+1),
			Value:           step.value,
			ConfidenceLower: step.value - half,
			ConfidenceUpper: step.value + half,
		})
	}

	result.Status = types.ForecastStatusOK
	result.Points = points
	e.observeFit(metric, string(types.ForecastStatusOK), time.Since(started))
	return result, nil
}

// Ready blocks until a fit slot is free or ctx expires. Health checks use it
// to detect a wedged fit pool.
func (e *Engine) Ready(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	e.sem.Release(1)
	return nil
}

// buildFitSeries returns the values handed to the fitter. When fewer observed
// points exist than MinHistory, a synthetic baseline prefix tops the series
// up to BootstrapTarget so the model has enough mass to fit; the prefix never
// reaches the response's historical window, and the flag records its use.
func (e *Engine) buildFitSeries(metric types.Metric, observed []types.SeriesPoint) ([]float64, bool) {
	prefix := 0
	if len(observed) < e.cfg.MinHistory && e.cfg.BootstrapTarget > len(observed) {
		prefix = e.cfg.BootstrapTarget - len(observed)
	}

	values := make([]float64, 0, len(observed)+prefix)
	if prefix > 0 {
		base := countBaseline
		if metric == types.MetricAvgRiskScore {
			base = riskBaseline
		}
		for i := 0; i < prefix; i++ {
			values = append(values, base+e.noise()*jitterFactor*base)
		}
	}
	for _, p := range observed {
		values = append(values, p.Value)
	}
	return values, prefix > 0
}

// anchorDate is the calendar day forecast steps count forward from: the last
// observation's day, or today when nothing has been observed yet.
func (e *Engine) anchorDate(observed []types.SeriesPoint) time.Time {
	if len(observed) > 0 {
		return observed[len(observed)-1].Date
	}
	now := e.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *Engine) observeFit(metric types.Metric, status string, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.ObserveFit(metric, status, elapsed.Seconds())
	}
}

func unavailableReason(err error) string {
	if errors.Is(err, ErrSeriesTooShort) {
		return ReasonInsufficientHistory
	}
	return ReasonModelFit
}

func tailPoints(points []types.SeriesPoint, n int) []types.SeriesPoint {
	if len(points) <= n {
		out := make([]types.SeriesPoint, len(points))
		copy(out, points)
		return out
	}
	out := make([]types.SeriesPoint, n)
	copy(out, points[len(points)-n:])
	return out
}
