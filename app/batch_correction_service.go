package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"gocombat/domain/core"
	"gocombat/domain/expression"
	"gocombat/internal"
	"gocombat/internal/combat"
	"gocombat/internal/config"
	"gocombat/ports"
)

// BatchCorrectionService is the drop-in transform callers use: it aligns the
// sample table with the matrix, keeps outlier samples out of the model,
// handles linear-scale data and runs the engine
type BatchCorrectionService struct {
	engine    *combat.Engine
	logger    *internal.Logger
	dataScale string
}

// CorrectionRequest defines the inputs of one correction run
type CorrectionRequest struct {
	Data           *expression.DataMatrix
	SampleInfo     *expression.SampleInfo
	OutlierSamples []string // excluded from the model, returned unchanged
	Scale          string   // config.Scale*; the service default when empty
}

// CorrectionResult is the corrected matrix plus a summary of the run
type CorrectionResult struct {
	RunID            core.RunID
	Corrected        *expression.DataMatrix
	Fingerprint      core.Hash
	Shrinkage        []combat.ShrinkResult
	Diagnostics      []combat.PriorFit
	Transformed      bool // data was log2-transformed for the model
	ExcludedOutliers []string
	RuntimeMs        int64
}

// NewBatchCorrectionService creates a service around engine
func NewBatchCorrectionService(engine *combat.Engine, logger *internal.Logger) *BatchCorrectionService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BatchCorrectionService{
		engine:    engine,
		logger:    logger,
		dataScale: config.ScaleLog2,
	}
}

// NewBatchCorrectionServiceFromConfig wires the logger, engine and data
// scale from cfg
func NewBatchCorrectionServiceFromConfig(cfg *config.Config) *BatchCorrectionService {
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	engine := combat.NewEngine(combat.OptionsFromConfig(cfg.Combat, logger))
	return NewBatchCorrectionService(engine, logger).WithDataScale(cfg.Combat.DataScale)
}

// WithDataScale sets the scale assumed for requests that do not name one
func (s *BatchCorrectionService) WithDataScale(scale string) *BatchCorrectionService {
	if scale != "" {
		s.dataScale = scale
	}
	return s
}

// CheckCorrectability reports whether a matrix with this sample table could
// be corrected, without any data
func (s *BatchCorrectionService) CheckCorrectability(info *expression.SampleInfo) error {
	return combat.CheckCorrectable(info, s.logger)
}

// Correct batch-corrects req.Data
func (s *BatchCorrectionService) Correct(ctx context.Context, req CorrectionRequest) (*CorrectionResult, error) {
	start := time.Now()
	runID := core.NewRunID()
	logger := s.logger.With("run_id", runID.String())

	if err := req.Data.Validate(); err != nil {
		return nil, err
	}
	if err := req.SampleInfo.Validate(); err != nil {
		return nil, err
	}
	if req.SampleInfo.NumSamples() != req.Data.Cols() {
		return nil, core.NewConfigurationError("sample info has %d samples but the matrix has %d columns",
			req.SampleInfo.NumSamples(), req.Data.Cols())
	}
	info, err := req.SampleInfo.Reorder(req.Data.ColIDs)
	if err != nil {
		return nil, err
	}

	kept, excluded, err := splitOutliers(req.Data.ColIDs, req.OutlierSamples)
	if err != nil {
		return nil, err
	}
	data := req.Data
	if len(excluded) > 0 {
		logger.Info("excluding %d outlier sample(s) from the model", len(excluded))
		if data, err = req.Data.SliceColumns(kept); err != nil {
			return nil, err
		}
		info = info.SelectRows(kept)
	}

	scale := req.Scale
	if scale == "" {
		scale = s.dataScale
	}
	transformed := false
	switch scale {
	case config.ScaleLinear:
		var dropped int
		data, dropped = log2Transform(data)
		transformed = true
		if dropped > 0 {
			logger.Warn("%d non-positive value(s) cannot be log-transformed and are treated as missing", dropped)
		}
	case config.ScaleLog2, config.ScaleLog10, config.ScaleLn:
	default:
		return nil, core.NewConfigurationError("unknown data scale %q", scale)
	}

	res, err := s.engine.Run(ctx, data, info)
	if err != nil {
		logger.Error("batch correction failed: %v", err)
		return nil, fmt.Errorf("batch correction failed: %w", err)
	}

	corrected := res.Corrected
	if transformed {
		corrected = exp2Transform(corrected)
	}

	out := req.Data.Clone()
	for j, col := range kept {
		for i := range out.Values {
			out.Values[i][col] = corrected.Values[i][j]
		}
	}

	result := &CorrectionResult{
		RunID:            runID,
		Corrected:        out,
		Fingerprint:      out.Fingerprint(),
		Shrinkage:        res.Posterior.Batches,
		Diagnostics:      combat.Diagnose(res.Priors, 0),
		Transformed:      transformed,
		ExcludedOutliers: excluded,
		RuntimeMs:        time.Since(start).Milliseconds(),
	}

	logger.Info("batch correction finished: %d features, %d samples, %d batches, fingerprint %s, %dms",
		out.Rows(), out.Cols(), len(result.Shrinkage), result.Fingerprint.String()[:12], result.RuntimeMs)
	return result, nil
}

// CorrectFromSource reads the inputs from src, corrects them and writes the
// result to sink. Fields of req other than Data and SampleInfo are honoured.
func (s *BatchCorrectionService) CorrectFromSource(ctx context.Context, src ports.ExpressionSourcePort, sink ports.ExpressionSinkPort, req CorrectionRequest) (*CorrectionResult, error) {
	data, err := src.ReadMatrix(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	info, err := src.ReadSampleInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample info: %w", err)
	}

	req.Data = data
	req.SampleInfo = info
	result, err := s.Correct(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := sink.WriteMatrix(ctx, result.Corrected); err != nil {
		return nil, fmt.Errorf("failed to write corrected matrix: %w", err)
	}
	return result, nil
}

// splitOutliers returns the column positions kept in the model and the
// outlier ids in matrix order
func splitOutliers(colIDs, outliers []string) ([]int, []string, error) {
	idx, err := expression.NewIndex(colIDs)
	if err != nil {
		return nil, nil, core.NewConfigurationError("sample ids: %v", err)
	}
	drop := make(map[int]bool, len(outliers))
	for _, id := range outliers {
		p, ok := idx.Position(id)
		if !ok {
			return nil, nil, core.NewConfigurationError("outlier sample %q is not a matrix column", id)
		}
		drop[p] = true
	}

	kept := make([]int, 0, len(colIDs)-len(drop))
	var excluded []string
	for p, id := range colIDs {
		if drop[p] {
			excluded = append(excluded, id)
			continue
		}
		kept = append(kept, p)
	}
	return kept, excluded, nil
}

// log2Transform returns log2 of m; non-positive entries become NaN
func log2Transform(m *expression.DataMatrix) (*expression.DataMatrix, int) {
	out := m.Clone()
	dropped := 0
	for _, row := range out.Values {
		for j, v := range row {
			if v <= 0 {
				row[j] = math.NaN()
				dropped++
				continue
			}
			row[j] = math.Log2(v)
		}
	}
	return out, dropped
}

func exp2Transform(m *expression.DataMatrix) *expression.DataMatrix {
	out := m.Clone()
	for _, row := range out.Values {
		for j, v := range row {
			row[j] = math.Exp2(v)
		}
	}
	return out
}
