// Package privacy implements the differential privacy layer applied to every
// aggregate before it leaves a clinic node, plus the integrity hash that
// commits to the unperturbed values.
//
// The privacy budget is a fixed epsilon spent per aggregate. Repeated pushes
// from the same window compound disclosure; no composition accounting is
// performed across pushes.
package privacy

import (
	"math"
	"math/rand/v2"
)

// Default privacy budget applied when params are left zero.
const (
	DefaultEpsilon     = 0.5
	DefaultSensitivity = 1.0
)

// Params fixes the Laplace mechanism's budget. Scale is Sensitivity/Epsilon,
// so a smaller epsilon means more noise.
type Params struct {
	Epsilon     float64
	Sensitivity float64
}

// Mechanism draws zero-centered Laplace noise via inverse transform sampling.
// Each Perturb call consumes an independent draw.
type Mechanism struct {
	params Params
	rng    func() float64
}

// NewMechanism creates a Mechanism with the given params. Zero or negative
// fields fall back to the defaults.
func NewMechanism(params Params) *Mechanism {
	return NewMechanismWithSource(params, rand.Float64)
}

// NewMechanismWithSource is NewMechanism with an injected uniform source in
// [0, 1). Tests pass a seeded generator for reproducible draws.
func NewMechanismWithSource(params Params, src func() float64) *Mechanism {
	if params.Epsilon <= 0 {
		params.Epsilon = DefaultEpsilon
	}
	if params.Sensitivity <= 0 {
		params.Sensitivity = DefaultSensitivity
	}
	if src == nil {
		src = rand.Float64
	}
	return &Mechanism{params: params, rng: src}
}

// Scale returns the Laplace scale b = sensitivity / epsilon.
func (m *Mechanism) Scale() float64 {
	return m.params.Sensitivity / m.params.Epsilon
}

// AddNoise returns value plus one Laplace draw at the mechanism's scale.
func (m *Mechanism) AddNoise(value float64) float64 {
	return value + m.sample(m.Scale())
}

// PerturbCount noises a count and floors the result at zero. Counts stay
// continuous after noising; consumers must not assume integers.
func (m *Mechanism) PerturbCount(count float64) float64 {
	return math.Max(0, m.AddNoise(count))
}

// PerturbScore noises a score and clips the result into [0, 1].
func (m *Mechanism) PerturbScore(score float64) float64 {
	noisy := m.AddNoise(score)
	switch {
	case noisy < 0:
		return 0
	case noisy > 1:
		return 1
	default:
		return noisy
	}
}

// sample draws one zero-centered Laplace variate at the given scale.
func (m *Mechanism) sample(scale float64) float64 {
	u := m.rng()
	// Keep the log argument strictly positive.
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	if u < 0.5 {
		return scale * math.Log(2*u)
	}
	return -scale * math.Log(2*(1-u))
}
