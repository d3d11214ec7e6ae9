package combat

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gocombat/domain/core"
)

// Adjust removes batch effects and returns the corrected data on the input
// scale (features x samples, original column order).
func Adjust(std *Standardized, d *Design, post *Posterior) (*mat.Dense, error) {
	adjusted := RawAdjust(std, d, post)
	if allNonFinite(adjusted) {
		return nil, core.NewRankDeficiencyError(0, d.NumColumns(),
			"adjusted data has no finite values; the model is probably not of full rank")
	}
	return RestoreScale(adjusted, std), nil
}

// RawAdjust removes the shrunk batch effects from the standardized data:
// for every batch, (sdata - gammaStar) / sqrt(deltaStar) over that batch's
// samples. Results are written back to the original sample positions, so the
// output has the same column order as std.Data.
//
// Known covariate effects are not subtracted here; they are part of
// StandMean and come back in RestoreScale.
func RawAdjust(std *Standardized, d *Design, post *Posterior) *mat.Dense {
	numFeatures, numSamples := std.Data.Dims()
	out := mat.NewDense(numFeatures, numSamples, nil)
	for b, g := range d.Batches {
		for f := 0; f < numFeatures; f++ {
			gamma := post.GammaStar.At(b, f)
			sd := math.Sqrt(post.DeltaStar.At(b, f))
			for _, s := range g.Samples {
				out.Set(f, s, (std.Data.At(f, s)-gamma)/sd)
			}
		}
	}
	return out
}

// RestoreScale maps adjusted data back to the input scale:
// adjusted * sqrt(PooledVar) + StandMean.
func RestoreScale(adjusted *mat.Dense, std *Standardized) *mat.Dense {
	numFeatures, numSamples := adjusted.Dims()
	out := mat.NewDense(numFeatures, numSamples, nil)
	for f := 0; f < numFeatures; f++ {
		sd := math.Sqrt(std.PooledVar[f])
		src := adjusted.RawRowView(f)
		dst := out.RawRowView(f)
		for s := 0; s < numSamples; s++ {
			dst[s] = src[s]*sd + std.StandMean.At(f, s)
		}
	}
	return out
}

// allNonFinite reports whether m has no finite entry.
func allNonFinite(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for _, v := range m.RawRowView(i)[:c] {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
