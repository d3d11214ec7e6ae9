package combat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gocombat/domain/core"
	"gocombat/domain/expression"
	"gocombat/internal"
	"gocombat/internal/config"
	"gocombat/internal/testkit"
)

func newTestEngine(workers int) *Engine {
	return NewEngine(Options{Workers: workers, Logger: internal.NewNopLogger()})
}

func scenarioConfig() testkit.BatchGeneratorConfig {
	cfg := testkit.DefaultBatchConfig()
	cfg.Noise = 0.15
	return cfg
}

func groupMean(values []float64, include func(j int) bool) float64 {
	sum, n := 0.0, 0
	for j, v := range values {
		if include(j) {
			sum += v
			n++
		}
	}
	return sum / float64(n)
}

func TestEngine_RemovesBatchShiftKeepsTreatment(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	res, err := newTestEngine(4).Run(context.Background(), ds.Data, ds.Info)
	require.NoError(t, err)

	out := res.Corrected
	assert.Equal(t, ds.Data.RowIDs, out.RowIDs)
	assert.Equal(t, ds.Data.ColIDs, out.ColIDs)
	require.Equal(t, ds.Data.Rows(), out.Rows())
	require.Equal(t, ds.Data.Cols(), out.Cols())

	inBatch := func(b int) func(int) bool { return func(j int) bool { return ds.BatchOf[j] == b } }
	treated := func(j int) bool { return ds.Treated[j] }
	control := func(j int) bool { return !ds.Treated[j] }

	var before, after float64
	for f := range out.Values {
		shift := groupMean(out.Values[f], inBatch(1)) - groupMean(out.Values[f], inBatch(0))
		assert.Less(t, math.Abs(shift), 0.3, "feature %s keeps a batch shift", out.RowIDs[f])

		before += groupMean(ds.Data.Values[f], treated) - groupMean(ds.Data.Values[f], control)
		after += groupMean(out.Values[f], treated) - groupMean(out.Values[f], control)
	}
	before /= float64(out.Rows())
	after /= float64(out.Rows())
	assert.InDelta(t, 2.0, before, 0.1)
	assert.InDelta(t, before, after, 0.1*before, "treatment effect preserved")

	for _, b := range res.Posterior.Batches {
		assert.True(t, b.Converged)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())

	first, err := newTestEngine(1).Run(context.Background(), ds.Data, ds.Info)
	require.NoError(t, err)
	second, err := newTestEngine(8).Run(context.Background(), ds.Data, ds.Info)
	require.NoError(t, err)

	assert.True(t, first.Corrected.Fingerprint().Equals(second.Corrected.Fingerprint()))
}

func TestEngine_SecondPassFindsNoBatchEffect(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	engine := newTestEngine(2)

	first, err := engine.Run(context.Background(), ds.Data, ds.Info)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), first.Corrected, ds.Info)
	require.NoError(t, err)

	gamma := second.Posterior.GammaStar.RawMatrix().Data
	delta := second.Posterior.DeltaStar.RawMatrix().Data
	var sum, sumAbs, sumDelta float64
	for i := range gamma {
		sum += gamma[i]
		sumAbs += math.Abs(gamma[i])
		sumDelta += delta[i]
	}
	n := float64(len(gamma))
	assert.Less(t, math.Abs(sum/n), 0.05)
	assert.Less(t, sumAbs/n, 0.15)
	assert.InDelta(t, 1.1, sumDelta/n, 0.3)
}

func TestEngine_TwoSampleBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	ids := sampleIDs(8)
	labels := []string{"A", "A", "A", "A", "A", "A", "B", "B"}
	info := expression.NewSampleInfo(ids).AddCategorical("batch", labels)

	rowIDs := make([]string, 30)
	for i := range rowIDs {
		rowIDs[i] = fmt.Sprintf("gene%02d", i)
	}
	data := expression.NewDataMatrix(rowIDs, ids)
	for f := range data.Values {
		base := 6 + rng.NormFloat64()
		for s := range data.Values[f] {
			v := base + 0.5*rng.NormFloat64()
			if labels[s] == "B" {
				v += 1
			}
			data.Values[f][s] = v
		}
	}

	res, err := newTestEngine(2).Run(context.Background(), data, info)
	require.NoError(t, err)
	assert.Equal(t, data.ColIDs, res.Corrected.ColIDs)
	assert.Len(t, res.Posterior.Batches, 2)
}

func TestEngine_SingleSampleBatch(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	labels := make([]string, ds.Info.NumSamples())
	copy(labels, ds.Info.Columns[0].Levels)
	labels[0] = "lonely"
	ds.Info.Columns[0].Levels = labels

	res, err := newTestEngine(2).Run(context.Background(), ds.Data, ds.Info)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestEngine_CollinearCovariate(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	ds.Info.AddCategorical("site", ds.Info.Columns[0].Levels)

	res, err := newTestEngine(2).Run(context.Background(), ds.Data, ds.Info)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, core.ErrRankDeficiency))
}

func TestEngine_SampleInfoMismatch(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	ds.Info.SampleIDs[0] = "unknown-sample"

	_, err := newTestEngine(2).Run(context.Background(), ds.Data, ds.Info)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestEngine_MissingValuesStayMissing(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	ds.Data.Values[3][4] = math.NaN()
	ds.Data.Values[10][0] = math.NaN()
	ds.Data.Values[10][7] = math.NaN()

	res, err := newTestEngine(2).Run(context.Background(), ds.Data, ds.Info)
	require.NoError(t, err)
	for f, row := range res.Corrected.Values {
		for s, v := range row {
			assert.Equal(t, math.IsNaN(ds.Data.Values[f][s]), math.IsNaN(v), "entry %d,%d", f, s)
		}
	}
}

func TestEngine_NonParametricNotSupported(t *testing.T) {
	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	engine := NewEngine(Options{Method: MethodNonParametric, Logger: internal.NewNopLogger()})

	res, err := engine.Run(context.Background(), ds.Data, ds.Info)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestEngine_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := testkit.GenerateBatchEffectData(scenarioConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(2).Run(ctx, ds.Data, ds.Info)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.CombatConfig{
		MaxIterations: 50,
		Tolerance:     1e-6,
		Workers:       3,
		Method:        config.MethodParametric,
	}, nil)
	assert.Equal(t, MethodParametric, opts.Method)
	assert.Equal(t, 50, opts.MaxIterations)
	assert.Equal(t, 1e-6, opts.Tolerance)
	assert.Equal(t, 3, opts.Workers)
	assert.NotNil(t, opts.Logger)

	engine := NewEngine(Options{})
	assert.Equal(t, DefaultMaxIterations, engine.Options().MaxIterations)
	assert.Equal(t, DefaultTolerance, engine.Options().Tolerance)
	assert.Greater(t, engine.Options().Workers, 0)
}
