package combat

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultHistogramBins is used by Diagnose when bins <= 0.
const DefaultHistogramBins = 20

// Histogram is an equal-width histogram over [Min, Max].
type Histogram struct {
	Min    float64
	Max    float64
	Counts []int
}

// PriorFit reports how well the fitted priors describe the per-feature
// estimates of one batch. GammaKS and DeltaKS are Kolmogorov-Smirnov
// distances (0 is a perfect fit, 1 the worst).
type PriorFit struct {
	BatchID        string
	GammaKS        float64
	DeltaKS        float64
	GammaHistogram Histogram
	DeltaHistogram Histogram
}

// Diagnose compares gammaHat against Normal(gammaBar, sqrt(t2)) and deltaHat
// against InverseGamma(aPrior, bPrior) for every batch.
func Diagnose(p *Priors, bins int) []PriorFit {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	fits := make([]PriorFit, len(p.BatchIDs))
	for b := range p.BatchIDs {
		gamma := finiteValues(mat.Row(nil, b, p.GammaHat))
		delta := finiteValues(mat.Row(nil, b, p.DeltaHat))

		normal := distuv.Normal{Mu: p.GammaBar[b], Sigma: math.Sqrt(p.T2[b])}
		fits[b] = PriorFit{
			BatchID:        p.BatchIDs[b],
			GammaKS:        ksDistance(gamma, normal.CDF),
			DeltaKS:        ksDistance(delta, inverseGammaCDF(p.APrior[b], p.BPrior[b])),
			GammaHistogram: histogram(gamma, bins),
			DeltaHistogram: histogram(delta, bins),
		}
	}
	return fits
}

// inverseGammaCDF returns the CDF of InverseGamma(shape, scale): if Y is
// Gamma(shape, rate=scale) then 1/Y has this distribution.
func inverseGammaCDF(shape, scale float64) func(float64) float64 {
	g := distuv.Gamma{Alpha: shape, Beta: scale}
	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return 1 - g.CDF(1/x)
	}
}

// ksDistance is the one-sample Kolmogorov-Smirnov statistic sup|F_n - F|.
// It is NaN for an empty sample.
func ksDistance(xs []float64, cdf func(float64) float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := float64(len(sorted))
	d := 0.0
	for i, x := range sorted {
		f := cdf(x)
		if math.IsNaN(f) {
			return math.NaN()
		}
		d = math.Max(d, math.Max(float64(i+1)/n-f, f-float64(i)/n))
	}
	return d
}

func histogram(xs []float64, bins int) Histogram {
	h := Histogram{Counts: make([]int, bins)}
	if len(xs) == 0 {
		h.Min, h.Max = math.NaN(), math.NaN()
		return h
	}
	h.Min, h.Max = xs[0], xs[0]
	for _, x := range xs[1:] {
		h.Min = math.Min(h.Min, x)
		h.Max = math.Max(h.Max, x)
	}
	width := (h.Max - h.Min) / float64(bins)
	for _, x := range xs {
		i := 0
		if width > 0 {
			i = int((x - h.Min) / width)
		}
		if i >= bins {
			i = bins - 1
		}
		h.Counts[i]++
	}
	return h
}

func finiteValues(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
