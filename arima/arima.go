// Package arima fits autoregressive integrated models without a moving average part and
// produces multi-step forecasts with normal prediction intervals.
package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrInvalidOrder     = errors.New("invalid model order")
	ErrInsufficientData = errors.New("insufficient observations for model order")
	ErrMissingValues    = errors.New("observations contain NaN")
	ErrUnfitModel       = errors.New("model must be fit before forecasting")
	ErrInvalidSteps     = errors.New("steps must be at least 1")
)

// DefaultZscore is the two-sided 95% normal quantile.
const DefaultZscore = 1.959963984540054

// Order of the autoregressive and differencing terms.
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,0)", o.P, o.D)
}

// Model is an ARIMA(p,d,0) model without a constant term. AR coefficients are estimated
// with the Yule-Walker equations on the uncentered autocovariances of the differenced
// series.
type Model struct {
	order Order

	phi      []float64
	variance float64

	// last level of each differencing stage, used to integrate forecasts
	tails []float64
	diff  []float64
	obs   []float64
	fit   bool
}

// Prediction holds forecasts and their interval bounds, one value per step.
type Prediction struct {
	Mean  []float64 `json:"mean"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// New returns an unfit model of the given order.
func New(p, d int) (*Model, error) {
	if p < 0 || d < 0 {
		return nil, fmt.Errorf("p=%d, d=%d, %w", p, d, ErrInvalidOrder)
	}
	return &Model{order: Order{P: p, D: d}}, nil
}

// MinObservations is the smallest series a model of this order can be fit to.
func (m *Model) MinObservations() int {
	return m.order.P + m.order.D + 1
}

// Fit estimates the AR coefficients and innovation variance from y.
func (m *Model) Fit(y []float64) error {
	if len(y) < m.MinObservations() {
		return fmt.Errorf("%s needs %d observations, got %d, %w", m.order, m.MinObservations(), len(y), ErrInsufficientData)
	}
	if floats.HasNaN(y) {
		return ErrMissingValues
	}

	y = append([]float64(nil), y...)
	series := make([]float64, len(y))
	copy(series, y)

	tails := make([]float64, 0, m.order.D)
	for i := 0; i < m.order.D; i++ {
		tails = append(tails, series[len(series)-1])
		series = difference(series)
	}

	gamma := autocovariance(series, m.order.P)
	phi, variance := levinson(gamma, m.order.P)

	m.phi = phi
	m.variance = variance
	m.tails = tails
	m.diff = series
	m.obs = y
	m.fit = true
	return nil
}

// Order returns the model order.
func (m *Model) Order() Order {
	return m.order
}

// Coefficients returns the AR coefficients phi_1..phi_p.
func (m *Model) Coefficients() []float64 {
	c := make([]float64, len(m.phi))
	copy(c, m.phi)
	return c
}

// Variance returns the innovation variance of the AR fit.
func (m *Model) Variance() float64 {
	return m.variance
}

// Fitted returns one-step-ahead predictions aligned with the training series. The first p+d
// values have no full lag window and are NaN.
func (m *Model) Fitted() ([]float64, error) {
	if !m.fit {
		return nil, ErrUnfitModel
	}

	p, d := len(m.phi), m.order.D
	res := make([]float64, len(m.obs))
	for t := range res {
		j := t - d
		if j < p {
			res[t] = math.NaN()
			continue
		}
		var pred float64
		for i := 0; i < p; i++ {
			pred += m.phi[i] * m.diff[j-i-1]
		}
		// the one step error of the level equals the error of its d-th difference
		res[t] = m.obs[t] - (m.diff[j] - pred)
	}
	return res, nil
}

// Forecast predicts steps values past the end of the training series. Intervals are the
// mean plus or minus z standard errors.
func (m *Model) Forecast(steps int, z float64) (*Prediction, error) {
	if !m.fit {
		return nil, ErrUnfitModel
	}
	if steps < 1 {
		return nil, fmt.Errorf("got %d steps, %w", steps, ErrInvalidSteps)
	}

	p := len(m.phi)
	n := len(m.diff)
	ext := make([]float64, n+steps)
	copy(ext, m.diff)
	for h := 0; h < steps; h++ {
		t := n + h
		var pred float64
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.phi[i] * ext[t-i-1]
		}
		ext[t] = pred
	}

	mean := ext[n:]
	for i := len(m.tails) - 1; i >= 0; i-- {
		mean = integrate(mean, m.tails[i])
	}

	psi := psiWeights(integratedAR(m.phi, m.order.D), steps)
	lower := make([]float64, steps)
	upper := make([]float64, steps)
	var cum float64
	for h := 0; h < steps; h++ {
		cum += psi[h] * psi[h]
		se := math.Sqrt(m.variance * cum)
		lower[h] = mean[h] - z*se
		upper[h] = mean[h] + z*se
	}

	return &Prediction{
		Mean:  mean,
		Lower: lower,
		Upper: upper,
	}, nil
}

func difference(y []float64) []float64 {
	res := make([]float64, len(y)-1)
	for i := 1; i < len(y); i++ {
		res[i-1] = y[i] - y[i-1]
	}
	return res
}

// integrate accumulates differences starting from the last observed level.
func integrate(diff []float64, last float64) []float64 {
	res := make([]float64, len(diff))
	level := last
	for i, d := range diff {
		level += d
		res[i] = level
	}
	return res
}

// autocovariance returns the biased uncentered autocovariances for lags 0..maxLag.
func autocovariance(w []float64, maxLag int) []float64 {
	n := len(w)
	gamma := make([]float64, maxLag+1)
	for k := 0; k <= maxLag && k < n; k++ {
		gamma[k] = floats.Dot(w[k:], w[:n-k]) / float64(n)
	}
	return gamma
}

// levinson solves the Yule-Walker equations for an AR(p) and returns the coefficients with
// the final prediction error variance. A series without variance yields zero coefficients.
func levinson(gamma []float64, p int) ([]float64, float64) {
	phi := make([]float64, p)
	v := gamma[0]
	if v <= 0 {
		return phi, 0
	}

	prev := make([]float64, p)
	for k := 1; k <= p; k++ {
		acc := gamma[k]
		for j := 1; j < k; j++ {
			acc -= phi[j-1] * gamma[k-j]
		}
		kappa := acc / v

		copy(prev, phi)
		for j := 1; j < k; j++ {
			phi[j-1] = prev[j-1] - kappa*prev[k-j-1]
		}
		phi[k-1] = kappa

		v *= 1 - kappa*kappa
		if v <= 0 {
			return phi, 0
		}
	}
	return phi, v
}

// integratedAR expands phi(B)(1-B)^d into the coefficients of the equivalent AR polynomial
// on levels, returned with the sign convention x_t = sum c_i x_{t-i}.
func integratedAR(phi []float64, d int) []float64 {
	// poly holds 1 - sum phi_i B^i
	poly := make([]float64, len(phi)+1)
	poly[0] = 1
	for i, c := range phi {
		poly[i+1] = -c
	}
	for i := 0; i < d; i++ {
		next := make([]float64, len(poly)+1)
		for j, c := range poly {
			next[j] += c
			next[j+1] -= c
		}
		poly = next
	}

	res := make([]float64, len(poly)-1)
	for i := range res {
		res[i] = -poly[i+1]
	}
	return res
}

// psiWeights returns the first n coefficients of the MA(infinity) representation.
func psiWeights(ar []float64, n int) []float64 {
	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		for i := 1; i <= len(ar) && i <= j; i++ {
			psi[j] += ar[i-1] * psi[j-i]
		}
	}
	return psi
}
