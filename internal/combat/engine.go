package combat

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"gocombat/domain/core"
	"gocombat/domain/expression"
	"gocombat/internal"
	"gocombat/internal/config"
)

// Method selects how the batch effect priors are fitted.
type Method string

const (
	MethodParametric    Method = config.MethodParametric
	MethodNonParametric Method = config.MethodNonParametric
)

// Options configures an Engine.
type Options struct {
	Method        Method
	MaxIterations int
	Tolerance     float64
	Workers       int // shrinkage goroutines; <= 0 means GOMAXPROCS
	Logger        *internal.Logger
}

// DefaultOptions returns the parametric method with the default iteration
// cap and tolerance.
func DefaultOptions() Options {
	return Options{
		Method:        MethodParametric,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Workers:       runtime.GOMAXPROCS(0),
		Logger:        internal.DefaultLogger,
	}
}

// OptionsFromConfig maps the engine section of the application config.
func OptionsFromConfig(cfg config.CombatConfig, logger *internal.Logger) Options {
	opts := DefaultOptions()
	if cfg.Method != "" {
		opts.Method = Method(cfg.Method)
	}
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.Tolerance > 0 {
		opts.Tolerance = cfg.Tolerance
	}
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// Engine runs ComBat batch correction. An Engine holds no per-run state and
// is safe for concurrent use.
type Engine struct {
	opts    Options
	reducer Reducer
	logger  *internal.Logger
}

// NewEngine creates an engine, filling unset options with defaults.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Method == "" {
		opts.Method = def.Method
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return &Engine{
		opts:    opts,
		reducer: NewReducer(SkipMissing),
		logger:  opts.Logger,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Result is the corrected matrix plus the intermediate model of the run.
type Result struct {
	Corrected    *expression.DataMatrix
	Design       *Design
	Standardized *Standardized
	Priors       *Priors
	Posterior    *Posterior
}

// Run batch-corrects data using the sample table info. The sample table is
// aligned to the matrix columns by sample id first. The corrected matrix has
// the same shape and labels as data; on error no matrix is returned.
func (e *Engine) Run(ctx context.Context, data *expression.DataMatrix, info *expression.SampleInfo) (*Result, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.NumSamples() != data.Cols() {
		return nil, core.NewConfigurationError("sample info has %d samples but the matrix has %d columns", info.NumSamples(), data.Cols())
	}
	aligned, err := info.Reorder(data.ColIDs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	design, err := BuildDesign(aligned, e.logger)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("design built in %s", time.Since(start))

	y := toDense(data)

	stageStart := time.Now()
	std, err := Standardize(y, design, e.reducer)
	if err != nil {
		return nil, err
	}
	if std.NonFiniteRows > 0 {
		e.logger.Warn("%d of %d features have no finite standardized value (constant or missing); they stay missing in the output",
			std.NonFiniteRows, data.Rows())
	}
	e.logger.Debug("standardized %d x %d in %s", data.Rows(), data.Cols(), time.Since(stageStart))

	stageStart = time.Now()
	priors := EstimatePriors(std, design, e.reducer)
	e.logger.Debug("priors estimated in %s", time.Since(stageStart))

	stageStart = time.Now()
	post, err := e.shrinkAll(ctx, std, design, priors)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("shrinkage of %d batches in %s", design.NumBatches, time.Since(stageStart))

	corrected, err := Adjust(std, design, post)
	if err != nil {
		return nil, err
	}

	e.logger.Info("corrected %d features x %d samples across %d batches in %s",
		data.Rows(), data.Cols(), design.NumBatches, time.Since(start))

	return &Result{
		Corrected:    fromDense(corrected, data.RowIDs, data.ColIDs),
		Design:       design,
		Standardized: std,
		Priors:       priors,
		Posterior:    post,
	}, nil
}

// shrinkAll runs one shrinkage task per batch on a bounded pool. Each task
// writes only its own slot; the posterior is assembled after Wait.
func (e *Engine) shrinkAll(ctx context.Context, std *Standardized, d *Design, priors *Priors) (*Posterior, error) {
	shrink := Shrink
	switch e.opts.Method {
	case MethodParametric:
	case MethodNonParametric:
		shrink = ShrinkNonParametric
	default:
		return nil, fmt.Errorf("%w: method %q", core.ErrNotSupported, e.opts.Method)
	}

	opts := ShrinkOptions{Tolerance: e.opts.Tolerance, MaxIterations: e.opts.MaxIterations}
	results := make([]*ShrinkResult, d.NumBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for b := range d.Batches {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batchData := batchSlice(std.Data, d.Batches[b].Samples)
			res, err := shrink(gctx, batchData, priors.Batch(b), opts, e.reducer)
			if err != nil {
				return err
			}
			e.logger.Trace("batch %s converged after %d iterations (change %.3g)", res.BatchID, res.Iterations, res.Change)
			results[b] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numFeatures, _ := std.Data.Dims()
	post := &Posterior{
		GammaStar: mat.NewDense(d.NumBatches, numFeatures, nil),
		DeltaStar: mat.NewDense(d.NumBatches, numFeatures, nil),
		Batches:   make([]ShrinkResult, d.NumBatches),
	}
	for b, res := range results {
		post.GammaStar.SetRow(b, res.GammaStar)
		post.DeltaStar.SetRow(b, res.DeltaStar)
		post.Batches[b] = *res
	}
	return post, nil
}

func toDense(m *expression.DataMatrix) *mat.Dense {
	out := mat.NewDense(m.Rows(), m.Cols(), nil)
	for i, row := range m.Values {
		out.SetRow(i, row)
	}
	return out
}

func fromDense(d *mat.Dense, rowIDs, colIDs []string) *expression.DataMatrix {
	out := expression.NewDataMatrix(rowIDs, colIDs)
	for i := range out.Values {
		copy(out.Values[i], d.RawRowView(i))
	}
	return out
}
