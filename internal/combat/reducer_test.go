package combat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReducer_SkipMissing(t *testing.T) {
	red := NewReducer(SkipMissing)
	nan := math.NaN()

	assert.Equal(t, 2, red.Count([]float64{1, nan, 3}))
	assert.InDelta(t, 2.0, red.Mean([]float64{1, nan, 3}), 1e-12)
	assert.InDelta(t, 5.0/3.0, red.SampleVariance([]float64{1, 2, nan, 3, 4}), 1e-12)
	assert.InDelta(t, 4.0, red.Sum([]float64{1, nan, 3}), 1e-12)
	assert.Equal(t, 5.0, red.Max([]float64{1, nan, 5}))
}

func TestReducer_EmptyInputs(t *testing.T) {
	red := NewReducer(SkipMissing)
	nan := math.NaN()

	assert.Equal(t, 0, red.Count([]float64{nan, nan}))
	assert.True(t, math.IsNaN(red.Mean(nil)))
	assert.True(t, math.IsNaN(red.Mean([]float64{nan})))
	assert.True(t, math.IsNaN(red.SampleVariance([]float64{1})))
	assert.Equal(t, 0.0, red.Sum([]float64{nan}))
	assert.True(t, math.IsNaN(red.Max(nil)))
}

func TestReducer_PropagateMissing(t *testing.T) {
	red := NewReducer(PropagateMissing)
	nan := math.NaN()

	assert.Equal(t, 3, red.Count([]float64{1, nan, 3}))
	assert.True(t, math.IsNaN(red.Mean([]float64{1, nan, 3})))
	assert.True(t, math.IsNaN(red.Sum([]float64{1, nan})))
	assert.True(t, math.IsNaN(red.Max([]float64{1, nan, 5})))
	assert.InDelta(t, 2.0, red.Mean([]float64{1, 3}), 1e-12)
}
