package timedataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnivariateDataset(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		y        []float64
		expected *TimeDataset
		err      error
	}{
		"no training data": {
			err: ErrNoTrainingData,
		},
		"length mismatch": {
			y:   []float64{1},
			err: ErrDatasetLenMismatch,
		},
		"non increasing time": {
			t: []time.Time{
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"duplicate time": {
			t: []time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"valid": {
			t: []time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			y: []float64{1, 2},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				},
				Y: []float64{1, 2},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := NewUnivariateDataset(td.t, td.y)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, ds)
		})
	}
}

func TestNewUnivariateDatasetDoesNotAlias(t *testing.T) {
	tSeries := []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	y := []float64{1, 2}
	ds, err := NewUnivariateDataset(tSeries, y)
	require.NoError(t, err)

	ds.Y[0] = 100
	assert.Equal(t, 1.0, y[0])
}

func TestCopy(t *testing.T) {
	tSeries := []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	y := []float64{0, 1}
	ds, err := NewUnivariateDataset(tSeries, y)
	require.Nil(t, err)

	nextDs := ds.Copy()
	require.Equal(t, ds, nextDs)

	ds.T = []time.Time{
		time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 4, 0, 0, 0, 0, time.UTC),
	}
	require.NotEqual(t, nextDs, ds)
}

func TestDropNan(t *testing.T) {
	tSeries := Regular(time.Date(1970, 1, 1, 20, 0, 0, 0, time.UTC), time.Hour, 4)
	ds, err := NewUnivariateDataset(tSeries, []float64{1, math.NaN(), 3, 4})
	require.NoError(t, err)

	res := ds.DropNan()
	assert.Equal(t, []float64{1, 3, 4}, res.Y)
	assert.Equal(t, []time.Time{tSeries[0], tSeries[2], tSeries[3]}, res.T)
	assert.Equal(t, 4, ds.Len())
}

func TestFuture(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		horizon  int
		expected []time.Time
		err      error
	}{
		"daily": {
			t: []time.Time{
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			horizon: 2,
			expected: []time.Time{
				time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			},
		},
		"hourly": {
			t: []time.Time{
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
			},
			horizon: 1,
			expected: []time.Time{
				time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC),
			},
		},
		"single point falls back to daily": {
			t:       []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			horizon: 1,
			expected: []time.Time{
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			},
		},
		"monthly keeps the day of month": {
			t: []time.Time{
				time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			},
			horizon: 2,
			expected: []time.Time{
				time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		"month end stays at month end": {
			t: []time.Time{
				time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			},
			horizon: 2,
			expected: []time.Time{
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		"yearly": {
			t: []time.Time{
				time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			horizon: 1,
			expected: []time.Time{
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		"zero horizon": {
			t:       []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			horizon: 0,
			err:     ErrInvalidHorizon,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := NewUnivariateDataset(td.t, make([]float64, len(td.t)))
			require.NoError(t, err)

			res, err := ds.Future(td.horizon)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, res)
		})
	}
}
