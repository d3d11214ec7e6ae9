package combat

import (
	"math"

	"github.com/montanaflynn/stats"
)

// MissingPolicy says what a Reducer does with NaN entries.
type MissingPolicy int

const (
	// SkipMissing drops NaN entries before reducing.
	SkipMissing MissingPolicy = iota
	// PropagateMissing lets a single NaN poison the result.
	PropagateMissing
)

// Reducer computes the moments used throughout the algorithm under one
// missing-value policy, so standardization, prior estimation and the
// shrinkage loop all treat NaN the same way.
//
// Reductions over an empty (or fully missing) input return NaN, except Sum
// which returns 0 and Count which returns 0.
type Reducer struct {
	Policy MissingPolicy
}

// NewReducer returns a reducer with the given policy.
func NewReducer(policy MissingPolicy) Reducer {
	return Reducer{Policy: policy}
}

func (r Reducer) values(xs []float64) stats.Float64Data {
	if r.Policy == PropagateMissing {
		return xs
	}
	clean := true
	for _, v := range xs {
		if math.IsNaN(v) {
			clean = false
			break
		}
	}
	if clean {
		return xs
	}
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of entries the policy keeps.
func (r Reducer) Count(xs []float64) int {
	return len(r.values(xs))
}

// Mean returns the arithmetic mean.
func (r Reducer) Mean(xs []float64) float64 {
	v, err := stats.Mean(r.values(xs))
	if err != nil {
		return math.NaN()
	}
	return v
}

// SampleVariance returns the unbiased (n-1) variance; NaN when fewer than
// two values remain.
func (r Reducer) SampleVariance(xs []float64) float64 {
	data := r.values(xs)
	if len(data) < 2 {
		return math.NaN()
	}
	v, err := stats.SampleVariance(data)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Sum returns the sum, 0 for an empty input.
func (r Reducer) Sum(xs []float64) float64 {
	data := r.values(xs)
	if len(data) == 0 {
		return 0
	}
	v, err := stats.Sum(data)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Max returns the largest value.
func (r Reducer) Max(xs []float64) float64 {
	data := r.values(xs)
	if len(data) == 0 {
		return math.NaN()
	}
	if r.Policy == PropagateMissing {
		for _, v := range data {
			if math.IsNaN(v) {
				return math.NaN()
			}
		}
	}
	v, err := stats.Max(data)
	if err != nil {
		return math.NaN()
	}
	return v
}
