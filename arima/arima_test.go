package arima

import (
	"math"
	"testing"

	"github.com/aouyang1/forecastd/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	m, err := New(5, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, m.MinObservations())
	assert.Equal(t, "ARIMA(5,1,0)", m.Order().String())
}

func TestFitErrors(t *testing.T) {
	testData := map[string]struct {
		y   []float64
		err error
	}{
		"too short": {
			y:   []float64{1, 2, 3, 4, 5, 6},
			err: ErrInsufficientData,
		},
		"nan": {
			y:   []float64{1, 2, 3, math.NaN(), 5, 6, 7, 8},
			err: ErrMissingValues,
		},
		"minimum length": {
			y: []float64{1, 3, 2, 4, 3, 5, 4},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			m, err := New(5, 1)
			require.NoError(t, err)
			err = m.Fit(td.y)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestForecastErrors(t *testing.T) {
	m, err := New(1, 0)
	require.NoError(t, err)

	_, err = m.Forecast(5, DefaultZscore)
	assert.ErrorIs(t, err, ErrUnfitModel)

	require.NoError(t, m.Fit([]float64{1, 2, 1, 2, 1}))
	_, err = m.Forecast(0, DefaultZscore)
	assert.ErrorIs(t, err, ErrInvalidSteps)
}

func TestFitAR1(t *testing.T) {
	n := 2000
	noise := timedataset.GenerateNoise(n, 1.0, 7)
	y := make([]float64, n)
	for i := 1; i < n; i++ {
		y[i] = 0.7*y[i-1] + noise[i]
	}

	m, err := New(1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Fit(y))

	assert.InDelta(t, 0.7, m.Coefficients()[0], 0.05)
	assert.InDelta(t, 1.0, m.Variance(), 0.1)
}

func TestForecastLinear(t *testing.T) {
	y := timedataset.GenerateLinearY(10, 10, 2)

	m, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(y))

	coef := m.Coefficients()
	require.Len(t, coef, 5)
	assert.InDelta(t, 13.0/14.0, coef[0], 1e-9)
	assert.InDelta(t, -1.0/14.0, coef[4], 1e-9)

	pred, err := m.Forecast(30, DefaultZscore)
	require.NoError(t, err)
	require.Len(t, pred.Mean, 30)
	assert.InDelta(t, 28+12.0/7.0, pred.Mean[0], 1e-9)
	for i := 1; i < 10; i++ {
		assert.Greater(t, pred.Mean[i], pred.Mean[i-1])
	}
	for i := range pred.Mean {
		assert.Less(t, pred.Lower[i], pred.Mean[i])
		assert.Greater(t, pred.Upper[i], pred.Mean[i])
	}
}

func TestForecastConstant(t *testing.T) {
	y := timedataset.GenerateConstY(12, 5)

	m, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(y))
	assert.Equal(t, 0.0, m.Variance())

	pred, err := m.Forecast(3, DefaultZscore)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5}, pred.Mean)
	assert.Equal(t, pred.Mean, pred.Lower)
	assert.Equal(t, pred.Mean, pred.Upper)
}

func TestIntervalsWiden(t *testing.T) {
	y := timedataset.GenerateRandomWalk(200, 100, 1, 3)

	m, err := New(5, 1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(y))

	pred, err := m.Forecast(30, DefaultZscore)
	require.NoError(t, err)
	for i := 1; i < 30; i++ {
		assert.GreaterOrEqual(t, pred.Upper[i]-pred.Lower[i], pred.Upper[i-1]-pred.Lower[i-1])
	}
}

func TestLevinson(t *testing.T) {
	phi, v := levinson([]float64{1, 0.5, 0.25}, 2)
	assert.InDeltaSlice(t, []float64{0.5, 0}, phi, 1e-12)
	assert.InDelta(t, 0.75, v, 1e-12)

	phi, v = levinson([]float64{0, 0}, 1)
	assert.Equal(t, []float64{0}, phi)
	assert.Equal(t, 0.0, v)
}

func TestIntegratedAR(t *testing.T) {
	testData := map[string]struct {
		phi      []float64
		d        int
		expected []float64
	}{
		"random walk": {
			d:        1,
			expected: []float64{1},
		},
		"ar1 differenced": {
			phi:      []float64{0.5},
			d:        1,
			expected: []float64{1.5, -0.5},
		},
		"ar2 differenced": {
			phi:      []float64{0.5, 0.2},
			d:        1,
			expected: []float64{1.5, -0.3, -0.2},
		},
		"no differencing": {
			phi:      []float64{0.3},
			expected: []float64{0.3},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.InDeltaSlice(t, td.expected, integratedAR(td.phi, td.d), 1e-12)
		})
	}

	assert.Equal(t, []float64{1, 1, 1, 1}, psiWeights([]float64{1}, 4))
}

func TestFitted(t *testing.T) {
	y := timedataset.GenerateRandomWalk(50, 100, 1, 11)

	testData := map[string]struct {
		p, d     int
		expected func(phi float64, i int) float64
	}{
		"ar1": {
			p: 1, d: 0,
			expected: func(phi float64, i int) float64 {
				return phi * y[i-1]
			},
		},
		"ar1 integrated": {
			p: 1, d: 1,
			expected: func(phi float64, i int) float64 {
				return y[i-1] + phi*(y[i-1]-y[i-2])
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			m, err := New(td.p, td.d)
			require.NoError(t, err)

			_, err = m.Fitted()
			assert.ErrorIs(t, err, ErrUnfitModel)

			require.NoError(t, m.Fit(y))
			fitted, err := m.Fitted()
			require.NoError(t, err)
			require.Len(t, fitted, len(y))

			warmup := td.p + td.d
			phi := m.Coefficients()[0]
			for i := range fitted {
				if i < warmup {
					assert.True(t, math.IsNaN(fitted[i]), "index %d", i)
					continue
				}
				assert.InDelta(t, td.expected(phi, i), fitted[i], 1e-9, "index %d", i)
			}
		})
	}
}
