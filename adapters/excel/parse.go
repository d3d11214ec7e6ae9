package excel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gocombat/domain/expression"
	"gocombat/internal/errors"
)

// missingTokens are read as a missing measurement
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"n/a":  true,
	"#n/a": true,
	"null": true,
}

func isMissing(cell string) bool {
	return missingTokens[strings.ToLower(cell)]
}

// ParseMatrix reads a feature x sample table: the header row holds sample
// ids after a leading label cell, each data row starts with its feature id.
// Missing tokens become NaN.
func ParseMatrix(table *RawTable) (*expression.DataMatrix, error) {
	if len(table.Headers) < 2 {
		return nil, errors.InvalidInput("matrix table needs a feature id column and at least one sample column")
	}
	colIDs := table.Headers[1:]
	rowIDs := make([]string, len(table.Rows))
	for i := range table.Rows {
		rowIDs[i] = table.Cell(i, 0)
		if rowIDs[i] == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("matrix row %d has no feature id", i+2))
		}
	}

	m := expression.NewDataMatrix(rowIDs, colIDs)
	for i := range table.Rows {
		if len(table.Rows[i]) > len(table.Headers) {
			return nil, errors.InvalidInput(fmt.Sprintf("matrix row %d has %d cells, header has %d", i+2, len(table.Rows[i]), len(table.Headers)))
		}
		for j := range colIDs {
			cell := table.Cell(i, j+1)
			if isMissing(cell) {
				m.Values[i][j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.WithCode(errors.CodeInvalidInput,
					fmt.Errorf("matrix cell %s/%s is not numeric: %q", rowIDs[i], colIDs[j], cell))
			}
			m.Values[i][j] = v
		}
	}
	if err := m.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return m, nil
}

// ParseSampleInfo reads a sample x covariate table: the first column holds
// sample ids, every further column is a covariate. A column is continuous
// when every non-empty value is numeric, otherwise categorical; the batch
// column is always categorical.
func ParseSampleInfo(table *RawTable) (*expression.SampleInfo, error) {
	if len(table.Headers) < 2 {
		return nil, errors.InvalidInput("sample table needs a sample id column and at least one covariate")
	}
	ids := make([]string, len(table.Rows))
	for i := range table.Rows {
		ids[i] = table.Cell(i, 0)
		if ids[i] == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("sample table row %d has no sample id", i+2))
		}
	}

	info := expression.NewSampleInfo(ids)
	for j, name := range table.Headers[1:] {
		col := j + 1
		raw := make([]string, len(table.Rows))
		for i := range table.Rows {
			raw[i] = table.Cell(i, col)
		}

		if strings.EqualFold(name, expression.BatchColumnName) {
			info.AddCategorical(name, raw)
			continue
		}
		if values, ok := parseNumericColumn(raw); ok {
			info.AddContinuous(name, values)
			continue
		}
		info.AddCategorical(name, raw)
	}

	if err := info.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return info, nil
}

// parseNumericColumn parses raw as numbers. Empty cells become NaN; a column
// with no numeric value at all is not numeric.
func parseNumericColumn(raw []string) ([]float64, bool) {
	values := make([]float64, len(raw))
	seen := false
	for i, cell := range raw {
		if cell == "" {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
		seen = true
	}
	return values, seen
}
