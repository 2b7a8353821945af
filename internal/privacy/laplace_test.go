package privacy

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededSource(seed uint64) func() float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	return r.Float64
}

func TestNewMechanism_Defaults(t *testing.T) {
	m := NewMechanism(Params{})

	// 1.0 / 0.5
	assert.InDelta(t, 2.0, m.Scale(), 1e-12)
}

func TestNewMechanism_ExplicitParams(t *testing.T) {
	m := NewMechanism(Params{Epsilon: 1.0, Sensitivity: 2.0})
	assert.InDelta(t, 2.0, m.Scale(), 1e-12)

	m = NewMechanism(Params{Epsilon: 0.1, Sensitivity: 1.0})
	assert.InDelta(t, 10.0, m.Scale(), 1e-12)
}

func TestNewMechanism_NegativeParamsFallBack(t *testing.T) {
	m := NewMechanism(Params{Epsilon: -3, Sensitivity: -1})
	assert.InDelta(t, DefaultSensitivity/DefaultEpsilon, m.Scale(), 1e-12)
}

func TestAddNoise_MedianDrawIsExact(t *testing.T) {
	// u = 0.5 sits at the distribution median, so the draw is exactly zero.
	m := NewMechanismWithSource(Params{}, func() float64 { return 0.5 })
	assert.Equal(t, 42.0, m.AddNoise(42.0))
}

func TestAddNoise_KnownQuantiles(t *testing.T) {
	// Inverse transform at u=0.25 and u=0.75 yields -/+ scale*ln(2).
	scale := 2.0
	want := scale * math.Log(2)

	low := NewMechanismWithSource(Params{}, func() float64 { return 0.25 })
	high := NewMechanismWithSource(Params{}, func() float64 { return 0.75 })

	assert.InDelta(t, -want, low.AddNoise(0), 1e-12)
	assert.InDelta(t, want, high.AddNoise(0), 1e-12)
}

func TestAddNoise_ZeroDrawStaysFinite(t *testing.T) {
	m := NewMechanismWithSource(Params{}, func() float64 { return 0 })
	got := m.AddNoise(10)
	require.False(t, math.IsInf(got, 0))
	require.False(t, math.IsNaN(got))
}

func TestAddNoise_EmpiricalDistribution(t *testing.T) {
	const n = 50000
	m := NewMechanismWithSource(Params{}, seededSource(7))
	scale := m.Scale()

	var sum, absSum float64
	negatives := 0
	for i := 0; i < n; i++ {
		draw := m.AddNoise(0)
		sum += draw
		absSum += math.Abs(draw)
		if draw < 0 {
			negatives++
		}
	}

	mean := sum / n
	absMean := absSum / n
	negFraction := float64(negatives) / n

	// Zero-centered, E|X| = scale, symmetric.
	assert.InDelta(t, 0.0, mean, 0.1)
	assert.InDelta(t, scale, absMean, 0.1)
	assert.InDelta(t, 0.5, negFraction, 0.02)
}

func TestAddNoise_SmallerEpsilonMeansMoreNoise(t *testing.T) {
	const n = 20000
	spread := func(epsilon float64) float64 {
		m := NewMechanismWithSource(Params{Epsilon: epsilon, Sensitivity: 1}, seededSource(11))
		var absSum float64
		for i := 0; i < n; i++ {
			absSum += math.Abs(m.AddNoise(0))
		}
		return absSum / n
	}

	assert.Greater(t, spread(0.1), spread(1.0))
}

func TestPerturbCount_FloorsAtZero(t *testing.T) {
	// A draw deep in the left tail makes the noised count negative.
	m := NewMechanismWithSource(Params{}, func() float64 { return 1e-300 })
	assert.Equal(t, 0.0, m.PerturbCount(3))
}

func TestPerturbCount_PreservesPositiveResults(t *testing.T) {
	m := NewMechanismWithSource(Params{}, func() float64 { return 0.5 })
	assert.Equal(t, 12.0, m.PerturbCount(12))
}

func TestPerturbScore_ClipsIntoUnitInterval(t *testing.T) {
	farLeft := NewMechanismWithSource(Params{}, func() float64 { return 1e-300 })
	assert.Equal(t, 0.0, farLeft.PerturbScore(0.4))

	farRight := NewMechanismWithSource(Params{}, func() float64 { return 1 - 1e-16 })
	assert.Equal(t, 1.0, farRight.PerturbScore(0.4))

	median := NewMechanismWithSource(Params{}, func() float64 { return 0.5 })
	assert.InDelta(t, 0.4, median.PerturbScore(0.4), 1e-12)
}

func TestPerturbScore_NeverEscapesBounds(t *testing.T) {
	m := NewMechanismWithSource(Params{Epsilon: 0.05, Sensitivity: 1}, seededSource(23))
	for i := 0; i < 5000; i++ {
		got := m.PerturbScore(0.5)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
	}
}

func TestAddNoise_IndependentDrawsDiffer(t *testing.T) {
	m := NewMechanismWithSource(Params{}, seededSource(99))
	a := m.AddNoise(0)
	b := m.AddNoise(0)
	assert.NotEqual(t, a, b)
}
