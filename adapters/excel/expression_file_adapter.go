package excel

import (
	"context"
	"fmt"

	"gocombat/domain/expression"
	"gocombat/internal"
	"gocombat/ports"
)

var (
	_ ports.ExpressionSourcePort = (*FileSource)(nil)
	_ ports.ExpressionSinkPort   = (*FileSink)(nil)
)

// FileSource implements ExpressionSourcePort for xlsx, csv and tsv files
type FileSource struct {
	config FileConfig
	logger *internal.Logger
}

// NewFileSource creates a source reading the matrix and sample table named in config
func NewFileSource(config FileConfig, logger *internal.Logger) *FileSource {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FileSource{config: config, logger: logger}
}

// ReadMatrix reads and parses the measurement matrix
func (s *FileSource) ReadMatrix(ctx context.Context) (*expression.DataMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := NewDataReader(s.config.MatrixPath, s.logger).WithSheet(s.config.sheet()).ReadTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	m, err := ParseMatrix(table)
	if err != nil {
		return nil, fmt.Errorf("failed to parse matrix %s: %w", s.config.MatrixPath, err)
	}
	s.logger.Info("loaded matrix %s (%d features x %d samples)", s.config.MatrixPath, m.Rows(), m.Cols())
	return m, nil
}

// ReadSampleInfo reads and parses the sample table
func (s *FileSource) ReadSampleInfo(ctx context.Context) (*expression.SampleInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := NewDataReader(s.config.SampleInfoPath, s.logger).WithSheet(s.config.sheet()).ReadTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read sample info: %w", err)
	}
	info, err := ParseSampleInfo(table)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sample info %s: %w", s.config.SampleInfoPath, err)
	}
	s.logger.Info("loaded sample info %s (%d samples, %d columns)", s.config.SampleInfoPath, info.NumSamples(), len(info.Columns))
	return info, nil
}

// FileSink implements ExpressionSinkPort by writing config.OutputPath
type FileSink struct {
	config FileConfig
	logger *internal.Logger
}

// NewFileSink creates a sink writing to config.OutputPath
func NewFileSink(config FileConfig, logger *internal.Logger) *FileSink {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FileSink{config: config, logger: logger}
}

// WriteMatrix writes m to the configured output
func (s *FileSink) WriteMatrix(ctx context.Context, m *expression.DataMatrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := NewDataWriter(s.config.OutputPath, s.logger).WithSheet(s.config.sheet()).WriteMatrix(m); err != nil {
		return fmt.Errorf("failed to write corrected matrix: %w", err)
	}
	s.logger.Info("wrote corrected matrix to %s", s.config.OutputPath)
	return nil
}
