package ports

import (
	"context"

	"gocombat/domain/expression"
)

// ExpressionSourcePort loads the inputs of a batch correction run
type ExpressionSourcePort interface {
	// ReadMatrix loads the feature-by-sample measurement matrix
	ReadMatrix(ctx context.Context) (*expression.DataMatrix, error)
	// ReadSampleInfo loads the sample metadata table, batch column included
	ReadSampleInfo(ctx context.Context) (*expression.SampleInfo, error)
}

// ExpressionSinkPort stores a corrected matrix
type ExpressionSinkPort interface {
	WriteMatrix(ctx context.Context, m *expression.DataMatrix) error
}
