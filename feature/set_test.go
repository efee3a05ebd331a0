package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSetMatrix(t *testing.T) {
	testData := map[string]struct {
		set      *Set
		expected *mat.Dense
	}{
		"empty": {
			set: NewSet(),
		},
		"sorted columns": {
			set: NewSet().
				Set(NewSeasonality("weekly", FourierCompSin, 1), []float64{5, 6}).
				Set(Linear(), []float64{1, 2}).
				Set(NewChangepoint("a"), []float64{3, 4}),
			expected: mat.NewDense(2, 3, []float64{
				3, 1, 5,
				4, 2, 6,
			}),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.set.Matrix()
			if td.expected == nil {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.True(t, mat.Equal(td.expected, res))
		})
	}
}

func TestSetFilterAndUpdate(t *testing.T) {
	s := NewSet().
		Set(Linear(), []float64{1, 2}).
		Set(NewEvent("promo"), []float64{0, 1})

	other := NewSet().Set(NewSeasonality("daily", FourierCompCos, 1), []float64{1, -1})
	s.Update(other)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.NumObservations())

	events := s.FilterByType(FeatureTypeEvent)
	assert.Equal(t, 1, events.Len())
	data, exists := events.Get(NewEvent("promo"))
	require.True(t, exists)
	assert.Equal(t, []float64{0, 1}, data)

	labels := s.Labels()
	idx, exists := labels.Index(Linear())
	require.True(t, exists)
	assert.Equal(t, 1, idx)

	_, exists = labels.Index(NewEvent("missing"))
	assert.False(t, exists)
}
