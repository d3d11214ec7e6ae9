package combat

import (
	"gonum.org/v1/gonum/mat"
)

// Priors holds the per-batch point estimates and the empirical-Bayes
// hyperparameters derived from them. Rows are batches in design order.
type Priors struct {
	BatchIDs []string
	GammaHat *mat.Dense // batches x features, batch mean shift
	DeltaHat *mat.Dense // batches x features, batch variance
	GammaBar []float64  // mean of GammaHat over features
	T2       []float64  // variance of GammaHat over features
	APrior   []float64  // inverse-gamma shape
	BPrior   []float64  // inverse-gamma scale
}

// BatchPrior is the slice of Priors one shrinkage solve needs.
type BatchPrior struct {
	BatchID  string
	GammaHat []float64
	DeltaHat []float64
	GammaBar float64
	T2       float64
	A        float64
	B        float64
}

// Batch returns the prior of batch b.
func (p *Priors) Batch(b int) BatchPrior {
	return BatchPrior{
		BatchID:  p.BatchIDs[b],
		GammaHat: mat.Row(nil, b, p.GammaHat),
		DeltaHat: mat.Row(nil, b, p.DeltaHat),
		GammaBar: p.GammaBar[b],
		T2:       p.T2[b],
		A:        p.APrior[b],
		B:        p.BPrior[b],
	}
}

// EstimatePriors derives gammaHat, deltaHat and the hyperprior parameters
// from the standardized data.
//
// gammaHat is the coefficient of each batch indicator when the standardized
// data is regressed on the batch block of the design. With one-hot indicators
// and no intercept that coefficient is the batch mean of each feature, which
// is what is computed here (missing values skipped by red).
func EstimatePriors(std *Standardized, d *Design, red Reducer) *Priors {
	numFeatures, _ := std.Data.Dims()
	numBatches := d.NumBatches

	p := &Priors{
		BatchIDs: make([]string, numBatches),
		GammaHat: mat.NewDense(numBatches, numFeatures, nil),
		DeltaHat: mat.NewDense(numBatches, numFeatures, nil),
		GammaBar: make([]float64, numBatches),
		T2:       make([]float64, numBatches),
		APrior:   make([]float64, numBatches),
		BPrior:   make([]float64, numBatches),
	}

	gammaRow := make([]float64, numFeatures)
	deltaRow := make([]float64, numFeatures)
	for b, g := range d.Batches {
		p.BatchIDs[b] = g.ID
		batchData := batchSlice(std.Data, g.Samples)
		for f := 0; f < numFeatures; f++ {
			row := batchData.RawRowView(f)
			gammaRow[f] = red.Mean(row)
			deltaRow[f] = red.SampleVariance(row)
		}
		p.GammaHat.SetRow(b, gammaRow)
		p.DeltaHat.SetRow(b, deltaRow)

		p.GammaBar[b] = red.Mean(gammaRow)
		p.T2[b] = red.SampleVariance(gammaRow)
		p.APrior[b] = aPrior(deltaRow, red)
		p.BPrior[b] = bPrior(deltaRow, red)
	}
	return p
}

// aPrior is the method-of-moments inverse-gamma shape.
func aPrior(deltaHat []float64, red Reducer) float64 {
	m := red.Mean(deltaHat)
	v := red.SampleVariance(deltaHat)
	return (2*v + m*m) / v
}

// bPrior is the method-of-moments inverse-gamma scale.
func bPrior(deltaHat []float64, red Reducer) float64 {
	m := red.Mean(deltaHat)
	v := red.SampleVariance(deltaHat)
	return (m*v + m*m*m) / v
}

// batchSlice copies the given sample columns of data into a new
// features x len(samples) matrix.
func batchSlice(data *mat.Dense, samples []int) *mat.Dense {
	numFeatures, _ := data.Dims()
	out := mat.NewDense(numFeatures, len(samples), nil)
	for f := 0; f < numFeatures; f++ {
		row := out.RawRowView(f)
		for j, s := range samples {
			row[j] = data.At(f, s)
		}
	}
	return out
}
