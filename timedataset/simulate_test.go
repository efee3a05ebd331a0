package timedataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegular(t *testing.T) {
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Regular(start, 24*time.Hour, 7)
	require.Len(t, res, 7)
	assert.Equal(t, start, res[0])
	assert.Equal(t, time.Date(1970, 1, 7, 0, 0, 0, 0, time.UTC), res[6])
	assert.Empty(t, Regular(start, time.Hour, 0))
}

func TestSeriesShapes(t *testing.T) {
	s := GenerateConstY(5, 1).Add(GenerateLinearY(5, 0, 2))
	assert.Equal(t, Series{1, 3, 5, 7, 9}, s)
}

func TestGenerateNoiseSeeded(t *testing.T) {
	a := GenerateNoise(50, 1.0, 7)
	b := GenerateNoise(50, 1.0, 7)
	c := GenerateNoise(50, 1.0, 8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	walk := GenerateRandomWalk(50, 10, 1.0, 7)
	require.Len(t, walk, 50)
	assert.InDelta(t, 10+a[0], walk[0], 1e-12)
	assert.InDelta(t, walk[48]+a[49], walk[49], 1e-12)
}
