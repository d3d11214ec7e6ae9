package combat

import (
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gocombat/domain/core"
	"gocombat/domain/expression"
	"gocombat/internal"
)

const (
	// minSamples is the smallest matrix ComBat will correct.
	minSamples = 4
	// minBatchSize is the smallest batch ComBat can estimate a variance for.
	minBatchSize = 2
	// unknownLevel replaces missing categorical covariate values.
	unknownLevel = "Unknown value"
)

// BatchGroup lists the sample positions (matrix columns) of one batch.
type BatchGroup struct {
	ID      string
	Samples []int
}

// Design is the numeric encoding of the sample table. The first NumBatches
// columns of X are one indicator per batch with no shared intercept, so every
// batch gets its own coefficient; the remaining columns encode the other
// covariates.
type Design struct {
	X           *mat.Dense // samples x columns
	ColumnNames []string
	SampleIDs   []string
	Batches     []BatchGroup // first-appearance order
	SampleBatch []int        // batch position of every sample
	NumBatches  int
}

// NumSamples returns the number of design rows.
func (d *Design) NumSamples() int { return len(d.SampleIDs) }

// NumColumns returns k, the number of design columns.
func (d *Design) NumColumns() int {
	_, k := d.X.Dims()
	return k
}

// BatchFraction returns the share of samples in batch b.
func (d *Design) BatchFraction(b int) float64 {
	return float64(len(d.Batches[b].Samples)) / float64(d.NumSamples())
}

// CheckCorrectable runs the design checks without any data: it reports
// whether a matrix with this sample table could be batch corrected.
func CheckCorrectable(info *expression.SampleInfo, logger *internal.Logger) error {
	_, err := BuildDesign(info, logger)
	return err
}

// BuildDesign encodes the sample table into a design matrix ordered
// [batch indicators..., other covariates...].
//
// Configuration problems (no batch column, fewer than 4 samples, a batch
// with fewer than 2 samples, inconsistent table) are reported before the
// design is assembled; a design that is not of full rank is reported as a
// rank deficiency.
func BuildDesign(info *expression.SampleInfo, logger *internal.Logger) (*Design, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	batchCol, err := info.BatchColumn()
	if err != nil {
		return nil, err
	}

	numSamples := info.NumSamples()
	if numSamples < minSamples {
		return nil, core.NewConfigurationError("cannot run ComBat with fewer than %d samples (got %d)", minSamples, numSamples)
	}

	batches, sampleBatch := groupBatches(info.Columns[batchCol].Levels)
	for _, g := range batches {
		if len(g.Samples) < minBatchSize {
			return nil, core.NewConfigurationError("batch %q has %d sample(s); batch correction needs at least %d per batch, consider combining batches",
				g.ID, len(g.Samples), minBatchSize)
		}
	}

	covNames, covCols := encodeCovariates(info, batchCol, logger)

	numBatches := len(batches)
	k := numBatches + len(covCols)
	x := mat.NewDense(numSamples, k, nil)
	names := make([]string, 0, k)
	for b, g := range batches {
		for _, s := range g.Samples {
			x.Set(s, b, 1)
		}
		names = append(names, expression.BatchColumnName+"_"+g.ID)
	}
	for j, col := range covCols {
		for s, v := range col {
			x.Set(s, numBatches+j, v)
		}
	}
	names = append(names, covNames...)

	if len(covCols) > 0 {
		nonBatch := x.Slice(0, numSamples, numBatches, k)
		if rank := matrixRank(nonBatch); rank < len(covCols) {
			return nil, core.NewRankDeficiencyError(rank, len(covCols),
				"non-batch factor part of the model matrix is not of full rank; batch correction cannot proceed")
		}
	}
	if rank := matrixRank(x); rank < k {
		return nil, core.NewRankDeficiencyError(rank, k,
			"model matrix is not of full rank, probably a confound between batch and other factors; batch correction cannot proceed")
	}

	logger.Debug("design matrix: %d samples, %d batches, %d covariate columns", numSamples, numBatches, len(covCols))

	return &Design{
		X:           x,
		ColumnNames: names,
		SampleIDs:   append([]string(nil), info.SampleIDs...),
		Batches:     batches,
		SampleBatch: sampleBatch,
		NumBatches:  numBatches,
	}, nil
}

func groupBatches(labels []string) ([]BatchGroup, []int) {
	pos := make(map[string]int)
	var groups []BatchGroup
	sampleBatch := make([]int, len(labels))
	for s, raw := range labels {
		label := strings.TrimSpace(raw)
		b, ok := pos[label]
		if !ok {
			b = len(groups)
			pos[label] = b
			groups = append(groups, BatchGroup{ID: label})
		}
		groups[b].Samples = append(groups[b].Samples, s)
		sampleBatch[s] = b
	}
	return groups, sampleBatch
}

// encodeCovariates dummy-codes categorical columns (sorted levels, first level
// as implicit baseline) and passes continuous columns through.
func encodeCovariates(info *expression.SampleInfo, batchCol int, logger *internal.Logger) ([]string, [][]float64) {
	var names []string
	var cols [][]float64
	seen := make(map[string]bool)
	warned := false

	for j, c := range info.Columns {
		if j == batchCol {
			continue
		}
		name := c.Name
		if seen[name] {
			name = name + "_" + strconv.Itoa(j)
		}
		seen[name] = true

		if c.Kind == expression.KindContinuous {
			names = append(names, name)
			cols = append(cols, append([]float64(nil), c.Values...))
			continue
		}

		levels := make([]string, len(c.Levels))
		for s, l := range c.Levels {
			l = strings.TrimSpace(l)
			if l == "" {
				if !warned {
					logger.Warn("missing value in sample info for %s at row %d, replacing with %q", c.Name, s, unknownLevel)
					warned = true
				}
				l = unknownLevel
			}
			levels[s] = l
		}
		distinct := distinctSorted(levels)
		if len(distinct) < 2 {
			logger.Debug("covariate %s has a single level, dropped from the model", c.Name)
			continue
		}
		for _, level := range distinct[1:] {
			col := make([]float64, len(levels))
			for s, l := range levels {
				if l == level {
					col[s] = 1
				}
			}
			names = append(names, name+"_"+level)
			cols = append(cols, col)
		}
	}
	return names, cols
}

func distinctSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// matrixRank counts singular values above max(r,c)*eps*sigma_max.
func matrixRank(a mat.Matrix) int {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0
	}
	r, c := a.Dims()
	n := r
	if c > n {
		n = c
	}
	tol := float64(n) * values[0] * 2.220446049250313e-16
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	return rank
}
