package timedataset

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Series is a synthetic sequence of observations built by adding simpler shapes together.
type Series []float64

// Add sums src into s in place.
func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

// Regular returns n timestamps spaced by interval starting at start.
func Regular(start time.Time, interval time.Duration, n int) []time.Time {
	t := make([]time.Time, n)
	for i := range t {
		t[i] = start.Add(time.Duration(i) * interval)
	}
	return t
}

func GenerateConstY(n int, val float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = val
	}
	return y
}

// GenerateLinearY returns intercept + slope*i for i in [0, n).
func GenerateLinearY(n int, intercept, slope float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = intercept + slope*float64(i)
	}
	return y
}

// GenerateNoise draws gaussian noise from a seeded source so simulations are reproducible.
func GenerateNoise(n int, scale float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	y := make(Series, n)
	for i := range y {
		y[i] = rng.NormFloat64() * scale
	}
	return y
}

// GenerateRandomWalk accumulates seeded gaussian steps starting at start.
func GenerateRandomWalk(n int, start, scale float64, seed uint64) Series {
	y := GenerateNoise(n, scale, seed)
	level := start
	for i := range y {
		level += y[i]
		y[i] = level
	}
	return y
}
