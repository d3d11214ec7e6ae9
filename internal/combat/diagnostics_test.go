package combat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKSDistance(t *testing.T) {
	uniform := func(x float64) float64 { return x }
	assert.InDelta(t, 0.5, ksDistance([]float64{0.5}, uniform), 1e-12)
	assert.InDelta(t, 0.25, ksDistance([]float64{0.25, 0.75}, uniform), 1e-12)
	assert.True(t, math.IsNaN(ksDistance(nil, uniform)))
}

func TestHistogram(t *testing.T) {
	h := histogram([]float64{0, 1, 2, 3, 4}, 4)
	assert.Equal(t, 0.0, h.Min)
	assert.Equal(t, 4.0, h.Max)
	assert.Equal(t, []int{1, 1, 1, 2}, h.Counts)

	flat := histogram([]float64{2, 2, 2}, 3)
	assert.Equal(t, []int{3, 0, 0}, flat.Counts)
}

func TestDiagnose_WellSpecifiedPriors(t *testing.T) {
	const n = 400
	rng := rand.New(rand.NewSource(17))

	gamma := make([]float64, n)
	delta := make([]float64, n)
	for i := 0; i < n; i++ {
		gamma[i] = rng.NormFloat64()
		// Gamma(shape 5, rate 4) as a sum of exponentials; its inverse is
		// InverseGamma(5, 4).
		y := 0.0
		for k := 0; k < 5; k++ {
			y += rng.ExpFloat64()
		}
		delta[i] = 4 / y
	}

	p := &Priors{
		BatchIDs: []string{"A"},
		GammaHat: mat.NewDense(1, n, gamma),
		DeltaHat: mat.NewDense(1, n, delta),
		GammaBar: []float64{0},
		T2:       []float64{1},
		APrior:   []float64{5},
		BPrior:   []float64{4},
	}

	fits := Diagnose(p, 0)
	require.Len(t, fits, 1)
	assert.Equal(t, "A", fits[0].BatchID)
	assert.Less(t, fits[0].GammaKS, 0.1)
	assert.Less(t, fits[0].DeltaKS, 0.1)
	assert.Len(t, fits[0].GammaHistogram.Counts, DefaultHistogramBins)

	total := 0
	for _, c := range fits[0].DeltaHistogram.Counts {
		total += c
	}
	assert.Equal(t, n, total)
}

func TestDiagnose_MisspecifiedPrior(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(23))
	gamma := make([]float64, n)
	delta := make([]float64, n)
	for i := range gamma {
		gamma[i] = 10 + rng.Float64()
		delta[i] = 1 + rng.Float64()
	}

	p := &Priors{
		BatchIDs: []string{"A"},
		GammaHat: mat.NewDense(1, n, gamma),
		DeltaHat: mat.NewDense(1, n, delta),
		GammaBar: []float64{0},
		T2:       []float64{1},
		APrior:   []float64{3},
		BPrior:   []float64{2},
	}

	fits := Diagnose(p, 10)
	assert.Greater(t, fits[0].GammaKS, 0.9)
	assert.Len(t, fits[0].GammaHistogram.Counts, 10)
}
