package combat

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gocombat/domain/core"
)

const (
	// DefaultTolerance is the relative change below which the fixed point
	// is considered reached.
	DefaultTolerance = 1e-4
	// DefaultMaxIterations caps the shrinkage loop of one batch.
	DefaultMaxIterations = 200
)

// ShrinkOptions controls one shrinkage solve.
type ShrinkOptions struct {
	Tolerance     float64
	MaxIterations int
}

// ShrinkResult is the posterior of one batch together with how the solve
// ended, so callers can tell an early convergence from hitting the cap.
type ShrinkResult struct {
	BatchID       string
	GammaStar     []float64
	DeltaStar     []float64
	Iterations    int
	MaxIterations int
	Converged     bool
	Change        float64 // last relative change
}

// Posterior collects the shrunk batch effects of every batch.
type Posterior struct {
	GammaStar *mat.Dense // batches x features
	DeltaStar *mat.Dense // batches x features
	Batches   []ShrinkResult
}

// Shrink solves the parametric empirical-Bayes fixed point for one batch.
// batchData holds the standardized data of the batch's samples
// (features x samples). Only batch-local data and the batch prior are read.
//
// When the cap is reached without convergence the partial result is
// returned together with a *core.ConvergenceError.
func Shrink(ctx context.Context, batchData *mat.Dense, prior BatchPrior, opts ShrinkOptions, red Reducer) (*ShrinkResult, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	numFeatures, numSamples := batchData.Dims()
	if len(prior.GammaHat) != numFeatures || len(prior.DeltaHat) != numFeatures {
		return nil, fmt.Errorf("batch %q: prior has %d/%d features, data has %d",
			prior.BatchID, len(prior.GammaHat), len(prior.DeltaHat), numFeatures)
	}

	n := make([]float64, numFeatures)
	for f := 0; f < numFeatures; f++ {
		n[f] = float64(red.Count(batchData.RawRowView(f)))
	}

	gOld := append([]float64(nil), prior.GammaHat...)
	dOld := append([]float64(nil), prior.DeltaHat...)
	gNew := make([]float64, numFeatures)
	dNew := make([]float64, numFeatures)
	// rel holds the gamma changes followed by the delta changes.
	rel := make([]float64, 2*numFeatures)
	sq := make([]float64, numSamples)

	result := &ShrinkResult{
		BatchID:       prior.BatchID,
		MaxIterations: opts.MaxIterations,
		Change:        math.Inf(1),
	}

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		postMean(gNew, prior.GammaHat, prior.GammaBar, n, dOld, prior.T2)
		for f := 0; f < numFeatures; f++ {
			row := batchData.RawRowView(f)
			for s, v := range row {
				diff := v - gNew[f]
				sq[s] = diff * diff
			}
			dNew[f] = postVar(red.Sum(sq), n[f], prior.A, prior.B)

			rel[f] = math.Abs(gNew[f]-gOld[f]) / math.Abs(gOld[f])
			rel[numFeatures+f] = math.Abs(dNew[f]-dOld[f]) / math.Abs(dOld[f])
		}

		change := red.Max(rel)
		if math.IsNaN(change) {
			// Only non-finite features: there is nothing left to move.
			change = 0
		}
		gOld, gNew = gNew, gOld
		dOld, dNew = dNew, dOld

		result.Iterations = iter
		result.Change = change
		if change < opts.Tolerance {
			result.Converged = true
			break
		}
	}

	result.GammaStar = gOld
	result.DeltaStar = dOld
	if !result.Converged {
		return result, core.NewConvergenceError(prior.BatchID, result.Iterations, result.Change)
	}
	return result, nil
}

// ShrinkNonParametric is the entry point of the non-parametric prior
// estimator. It is not implemented.
func ShrinkNonParametric(_ context.Context, _ *mat.Dense, prior BatchPrior, _ ShrinkOptions, _ Reducer) (*ShrinkResult, error) {
	return nil, fmt.Errorf("%w: non-parametric shrinkage (batch %q)", core.ErrNotSupported, prior.BatchID)
}

// postMean writes the conditional posterior mean of gamma into dst.
func postMean(dst, gammaHat []float64, gammaBar float64, n, deltaStar []float64, t2 float64) {
	for f := range dst {
		dst[f] = (t2*n[f]*gammaHat[f] + deltaStar[f]*gammaBar) / (t2*n[f] + deltaStar[f])
	}
}

// postVar is the conditional posterior mean of delta.
func postVar(sumSq, n, a, b float64) float64 {
	return (0.5*sumSq + b) / (n/2.0 + a - 1.0)
}
