// Package forecasts produces daily-series projections for the collector's
// metrics. Models are fit per request on the calendar-day series; fitting is
// conditional estimation of an ARIMA(1,1,1) in closed form, so a fit is cheap
// but can legitimately fail on degenerate series. Fit failures surface as
// in-band unavailable results, never transport errors.
package forecasts

import (
	"errors"
	"fmt"
	"math"
)

// Fit failure modes. The engine folds these into unavailable results.
var (
	// ErrSeriesTooShort means the series cannot even be differenced and
	// autocorrelated. With bootstrap enabled this should not occur.
	ErrSeriesTooShort = errors.New("series too short to fit")
	// ErrDegenerateSeries means the differenced series has no variation,
	// e.g. a constant or strictly linear input.
	ErrDegenerateSeries = errors.New("series differences have no variation")
	// ErrModelFit means the moment equations produced no usable model.
	ErrModelFit = errors.New("model fit produced no usable parameters")
)

// minFitLen is the fewest observations the moment estimators can work with:
// differencing consumes one and the lag-2 autocovariance needs three more.
const minFitLen = 5

// coefClamp keeps the AR and MA coefficients strictly inside the
// stationary/invertible region so the forecast recursions stay finite.
const coefClamp = 0.98

// arimaModel holds a fitted ARIMA(1,1,1): an ARMA(1,1) on the first
// difference of the series, assumed zero-mean.
type arimaModel struct {
	phi      float64 // AR(1) coefficient on the differenced series
	theta    float64 // MA(1) coefficient
	sigma2   float64 // innovation variance
	lastVal  float64 // last observed level
	lastDiff float64 // last observed difference
	lastEps  float64 // last conditional residual
}

// forecastStep is one projected level with its standard error.
type forecastStep struct {
	value  float64
	stderr float64
}

// fitARIMA111 estimates an ARIMA(1,1,1) by method of moments on the first
// difference: phi from the lag-2/lag-1 autocovariance ratio, theta from the
// invertible root of the lag-1 moment quadratic, and the innovation variance
// from the ARMA(1,1) variance identity. Residuals are then recovered by a
// conditional recursion so one-step forecasts can use the final innovation.
func fitARIMA111(series []float64) (*arimaModel, error) {
	if len(series) < minFitLen {
		return nil, ErrSeriesTooShort
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite observation", ErrModelFit)
		}
	}

	diffs := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		diffs[i-1] = series[i] - series[i-1]
	}

	g0 := autocov(diffs, 0)
	g1 := autocov(diffs, 1)
	g2 := autocov(diffs, 2)

	if g0 < 1e-12 {
		return nil, ErrDegenerateSeries
	}

	phi := 0.0
	if math.Abs(g1) >= 1e-12 {
		phi = clampCoef(g2 / g1)
	}

	theta := solveTheta(g1/g0, phi)

	// ARMA(1,1) variance identity: g0 = sigma2*(1+2*phi*theta+theta^2)/(1-phi^2).
	denom := 1 + 2*phi*theta + theta*theta
	if denom < 1e-9 {
		return nil, fmt.Errorf("%w: singular variance identity", ErrModelFit)
	}
	sigma2 := g0 * (1 - phi*phi) / denom
	if sigma2 <= 0 || math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return nil, fmt.Errorf("%w: non-positive innovation variance", ErrModelFit)
	}

	// Conditional residual recursion with eps_0 = 0.
	eps := diffs[0]
	for t := 1; t < len(diffs); t++ {
		eps = diffs[t] - phi*diffs[t-1] - theta*eps
	}

	return &arimaModel{
		phi:      phi,
		theta:    theta,
		sigma2:   sigma2,
		lastVal:  series[len(series)-1],
		lastDiff: diffs[len(diffs)-1],
		lastEps:  eps,
	}, nil
}

// forecast projects h steps ahead. Values integrate the difference forecasts
// from the last observed level; standard errors accumulate the psi-weights of
// the integrated process, so uncertainty is non-decreasing in the horizon.
func (m *arimaModel) forecast(h int) []forecastStep {
	steps := make([]forecastStep, 0, h)

	// Integrated AR polynomial (1-phi*B)(1-B) drives the psi recursion:
	// psi_1 = (1+phi) + theta, psi_j = (1+phi)*psi_{j-1} - phi*psi_{j-2}.
	psiPrev2 := 1.0 // psi_0
	psiPrev1 := (1 + m.phi) + m.theta
	varAcc := m.sigma2 // h=1 error variance is sigma2*psi_0^2

	level := m.lastVal
	dhat := 0.0
	for i := 1; i <= h; i++ {
		if i == 1 {
			dhat = m.phi*m.lastDiff + m.theta*m.lastEps
		} else {
			dhat = m.phi * dhat
		}
		level += dhat

		steps = append(steps, forecastStep{value: level, stderr: math.Sqrt(varAcc)})

		varAcc += m.sigma2 * psiPrev1 * psiPrev1
		psiPrev2, psiPrev1 = psiPrev1, (1+m.phi)*psiPrev1-m.phi*psiPrev2
	}
	return steps
}

// autocov computes the lag-k second moment about zero, matching the model's
// zero-mean assumption on the differenced series.
func autocov(x []float64, k int) float64 {
	if len(x) <= k {
		return 0
	}
	var sum float64
	for i := 0; i < len(x)-k; i++ {
		sum += x[i] * x[i+k]
	}
	return sum / float64(len(x))
}

// solveTheta picks the invertible root of the lag-1 moment quadratic
//
//	(kappa-phi)*theta^2 + (2*kappa*phi - 1 - phi^2)*theta + (kappa-phi) = 0
//
// where kappa is the lag-1 autocorrelation of the differences. The two real
// roots are reciprocal, so the smaller-magnitude one is the invertible
// choice. Degenerate or complex cases collapse to theta = 0, which leaves a
// plain ARI(1,1).
func solveTheta(kappa, phi float64) float64 {
	a := kappa - phi
	b := 2*kappa*phi - 1 - phi*phi
	if math.Abs(a) < 1e-9 {
		return 0
	}
	disc := b*b - 4*a*a
	if disc < 0 {
		return 0
	}
	sq := math.Sqrt(disc)
	r1 := (-b + sq) / (2 * a)
	r2 := (-b - sq) / (2 * a)
	root := r1
	if math.Abs(r2) < math.Abs(r1) {
		root = r2
	}
	return clampCoef(root)
}

func clampCoef(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > coefClamp {
		return coefClamp
	}
	if v < -coefClamp {
		return -coefClamp
	}
	return v
}

// zScore returns the two-sided normal quantile for a confidence level.
// Unrecognized levels fall back to 95%.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.5758
	case confidence >= 0.95:
		return 1.9600
	case confidence >= 0.90:
		return 1.6449
	case confidence >= 0.80:
		return 1.2816
	default:
		return 1.9600
	}
}
