package expression

import (
	"fmt"
	"math"

	"gocombat/domain/core"
)

// DataMatrix is a dense feature-by-sample matrix of measurements.
// Rows are features (probes, genes), columns are samples. NaN marks a
// missing value.
type DataMatrix struct {
	RowIDs []string    // feature identifiers
	ColIDs []string    // sample identifiers
	Values [][]float64 // rows=features, cols=samples
}

// NewDataMatrix allocates an all-zero matrix with the given labels.
func NewDataMatrix(rowIDs, colIDs []string) *DataMatrix {
	values := make([][]float64, len(rowIDs))
	for i := range values {
		values[i] = make([]float64, len(colIDs))
	}
	return &DataMatrix{
		RowIDs: append([]string(nil), rowIDs...),
		ColIDs: append([]string(nil), colIDs...),
		Values: values,
	}
}

// Rows returns the number of features.
func (m *DataMatrix) Rows() int { return len(m.RowIDs) }

// Cols returns the number of samples.
func (m *DataMatrix) Cols() int { return len(m.ColIDs) }

// Validate ensures the matrix is internally consistent
func (m *DataMatrix) Validate() error {
	if m == nil {
		return core.NewConfigurationError("data matrix is nil")
	}
	if len(m.RowIDs) == 0 || len(m.ColIDs) == 0 {
		return core.NewConfigurationError("data matrix is empty (%d x %d)", len(m.RowIDs), len(m.ColIDs))
	}
	if len(m.Values) != len(m.RowIDs) {
		return core.NewConfigurationError("data matrix has %d rows but %d row ids", len(m.Values), len(m.RowIDs))
	}
	for i, row := range m.Values {
		if len(row) != len(m.ColIDs) {
			return core.NewConfigurationError("row %d has %d columns, expected %d", i, len(row), len(m.ColIDs))
		}
	}
	if _, err := NewIndex(m.RowIDs); err != nil {
		return core.NewConfigurationError("row ids: %v", err)
	}
	if _, err := NewIndex(m.ColIDs); err != nil {
		return core.NewConfigurationError("column ids: %v", err)
	}
	return nil
}

// HasMissing reports whether any entry is NaN.
func (m *DataMatrix) HasMissing() bool {
	for _, row := range m.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy.
func (m *DataMatrix) Clone() *DataMatrix {
	out := NewDataMatrix(m.RowIDs, m.ColIDs)
	for i, row := range m.Values {
		copy(out.Values[i], row)
	}
	return out
}

// SliceColumns returns a copy restricted to the given column positions, in
// the given order.
func (m *DataMatrix) SliceColumns(cols []int) (*DataMatrix, error) {
	ids := make([]string, len(cols))
	for j, c := range cols {
		if c < 0 || c >= len(m.ColIDs) {
			return nil, fmt.Errorf("column %d out of range [0,%d)", c, len(m.ColIDs))
		}
		ids[j] = m.ColIDs[c]
	}
	out := NewDataMatrix(m.RowIDs, ids)
	for i, row := range m.Values {
		for j, c := range cols {
			out.Values[i][j] = row[c]
		}
	}
	return out, nil
}

// Fingerprint hashes labels and values for replay checks.
func (m *DataMatrix) Fingerprint() core.Hash {
	return core.ComputeMatrixHash(m.RowIDs, m.ColIDs, m.Values)
}
