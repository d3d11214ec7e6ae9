package combat

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gocombat/domain/core"
)

// Standardized is the output of the Standardizer. It is threaded explicitly
// into prior estimation and into the Adjuster; nothing is kept on the engine.
type Standardized struct {
	Data       *mat.Dense // features x samples, (Y - StandMean) / sqrt(PooledVar)
	Beta       *mat.Dense // design columns x features
	GrandMean  []float64  // per feature, batch coefficients weighted by batch size
	PooledVar  []float64  // per feature residual variance
	StandMean  *mat.Dense // features x samples, GrandMean plus non-batch covariate effects
	HasMissing bool

	// NonFiniteRows counts features whose standardized row has no finite
	// value at all (constant or fully missing features).
	NonFiniteRows int
}

// Standardize fits the covariate model by least squares and standardizes y
// (features x samples) against it. Batch effects are left in the result;
// known covariate effects are removed.
func Standardize(y *mat.Dense, d *Design, red Reducer) (*Standardized, error) {
	numFeatures, numSamples := y.Dims()
	if numSamples != d.NumSamples() {
		return nil, core.NewConfigurationError("data has %d samples but design has %d", numSamples, d.NumSamples())
	}
	hasMissing := containsNaN(y)

	beta, err := fitCoefficients(y, d.X, hasMissing)
	if err != nil {
		return nil, err
	}

	// fitted is samples x features.
	var fitted mat.Dense
	fitted.Mul(d.X, beta)

	grandMean := make([]float64, numFeatures)
	for b := 0; b < d.NumBatches; b++ {
		w := d.BatchFraction(b)
		for f := 0; f < numFeatures; f++ {
			grandMean[f] += w * beta.At(b, f)
		}
	}

	pooledVar := make([]float64, numFeatures)
	resid := make([]float64, numSamples)
	for f := 0; f < numFeatures; f++ {
		for s := 0; s < numSamples; s++ {
			resid[s] = y.At(f, s) - fitted.At(s, f)
		}
		if hasMissing {
			pooledVar[f] = red.SampleVariance(resid)
			continue
		}
		ss := 0.0
		for _, r := range resid {
			ss += r * r
		}
		pooledVar[f] = ss / float64(numSamples)
	}

	// Covariate effects without the batch indicators.
	k := d.NumColumns()
	standMean := mat.NewDense(numFeatures, numSamples, nil)
	for f := 0; f < numFeatures; f++ {
		for s := 0; s < numSamples; s++ {
			v := grandMean[f]
			for j := d.NumBatches; j < k; j++ {
				v += d.X.At(s, j) * beta.At(j, f)
			}
			standMean.Set(f, s, v)
		}
	}

	sdata := mat.NewDense(numFeatures, numSamples, nil)
	finite := 0
	nonFiniteRows := 0
	for f := 0; f < numFeatures; f++ {
		sd := math.Sqrt(pooledVar[f])
		rowFinite := 0
		for s := 0; s < numSamples; s++ {
			v := (y.At(f, s) - standMean.At(f, s)) / sd
			sdata.Set(f, s, v)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				rowFinite++
			}
		}
		if rowFinite == 0 {
			nonFiniteRows++
		}
		finite += rowFinite
	}
	if finite == 0 {
		return nil, core.NewRankDeficiencyError(0, 0,
			"standardized data has no finite values; the model is probably not of full rank")
	}

	return &Standardized{
		Data:          sdata,
		Beta:          beta,
		GrandMean:     grandMean,
		PooledVar:     pooledVar,
		StandMean:     standMean,
		HasMissing:    hasMissing,
		NonFiniteRows: nonFiniteRows,
	}, nil
}

// fitCoefficients solves x * beta = y^T in the least-squares sense,
// returning beta as design columns x features. Features with missing values
// are fitted on their observed samples only; a feature that cannot be
// fitted gets NaN coefficients.
func fitCoefficients(y, x *mat.Dense, hasMissing bool) (*mat.Dense, error) {
	numFeatures, numSamples := y.Dims()
	_, k := x.Dims()

	if !hasMissing {
		var beta mat.Dense
		if err := beta.Solve(x, y.T()); err != nil {
			return nil, core.NewRankDeficiencyError(matrixRank(x), k, "least squares fit failed: "+err.Error())
		}
		return &beta, nil
	}

	beta := mat.NewDense(k, numFeatures, nil)
	var complete []int
	for f := 0; f < numFeatures; f++ {
		observed := observedColumns(y, f)
		if len(observed) == numSamples {
			complete = append(complete, f)
			continue
		}
		coef := fitObserved(y, x, f, observed)
		beta.SetCol(f, coef)
	}

	if len(complete) > 0 {
		yc := mat.NewDense(numSamples, len(complete), nil)
		for j, f := range complete {
			for s := 0; s < numSamples; s++ {
				yc.Set(s, j, y.At(f, s))
			}
		}
		var bc mat.Dense
		if err := bc.Solve(x, yc); err != nil {
			return nil, core.NewRankDeficiencyError(matrixRank(x), k, "least squares fit failed: "+err.Error())
		}
		col := make([]float64, k)
		for j, f := range complete {
			mat.Col(col, j, &bc)
			beta.SetCol(f, col)
		}
	}
	return beta, nil
}

func fitObserved(y, x *mat.Dense, f int, observed []int) []float64 {
	_, k := x.Dims()
	coef := make([]float64, k)
	if len(observed) < k {
		for j := range coef {
			coef[j] = math.NaN()
		}
		return coef
	}
	xs := mat.NewDense(len(observed), k, nil)
	ys := mat.NewVecDense(len(observed), nil)
	for i, s := range observed {
		for j := 0; j < k; j++ {
			xs.Set(i, j, x.At(s, j))
		}
		ys.SetVec(i, y.At(f, s))
	}
	if matrixRank(xs) < k {
		for j := range coef {
			coef[j] = math.NaN()
		}
		return coef
	}
	var b mat.VecDense
	if err := b.SolveVec(xs, ys); err != nil {
		for j := range coef {
			coef[j] = math.NaN()
		}
		return coef
	}
	for j := range coef {
		coef[j] = b.AtVec(j)
	}
	return coef
}

func observedColumns(y *mat.Dense, f int) []int {
	_, n := y.Dims()
	out := make([]int, 0, n)
	for s := 0; s < n; s++ {
		if !math.IsNaN(y.At(f, s)) {
			out = append(out, s)
		}
	}
	return out
}

func containsNaN(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.At(i, j)) {
				return true
			}
		}
	}
	return false
}
