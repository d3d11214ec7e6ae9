package expression

import (
	"math"
	"strings"

	"gocombat/domain/core"
)

// BatchColumnName is the mandatory categorical column holding batch labels.
const BatchColumnName = "batch"

// ColumnKind defines how a sample covariate is encoded
type ColumnKind string

const (
	KindCategorical ColumnKind = "categorical"
	KindContinuous  ColumnKind = "continuous"
)

// Column is one covariate of the sample table. Categorical columns use
// Levels (empty string = missing); continuous columns use Values.
type Column struct {
	Name   string
	Kind   ColumnKind
	Levels []string
	Values []float64
}

// Len returns the number of samples the column describes.
func (c Column) Len() int {
	if c.Kind == KindContinuous {
		return len(c.Values)
	}
	return len(c.Levels)
}

// SampleInfo is the sample metadata table keyed by sample id.
type SampleInfo struct {
	SampleIDs []string
	Columns   []Column
}

// NewSampleInfo creates an empty table over the given samples.
func NewSampleInfo(sampleIDs []string) *SampleInfo {
	return &SampleInfo{SampleIDs: append([]string(nil), sampleIDs...)}
}

// AddCategorical appends a categorical column.
func (s *SampleInfo) AddCategorical(name string, levels []string) *SampleInfo {
	s.Columns = append(s.Columns, Column{
		Name:   name,
		Kind:   KindCategorical,
		Levels: append([]string(nil), levels...),
	})
	return s
}

// AddContinuous appends a continuous column.
func (s *SampleInfo) AddContinuous(name string, values []float64) *SampleInfo {
	s.Columns = append(s.Columns, Column{
		Name:   name,
		Kind:   KindContinuous,
		Values: append([]float64(nil), values...),
	})
	return s
}

// NumSamples returns the number of rows of the table.
func (s *SampleInfo) NumSamples() int { return len(s.SampleIDs) }

// Validate checks the table shape: unique sample ids and every column
// covering every sample.
func (s *SampleInfo) Validate() error {
	if s == nil {
		return core.NewConfigurationError("sample info is nil")
	}
	if len(s.SampleIDs) == 0 {
		return core.NewConfigurationError("sample info has no samples")
	}
	if _, err := NewIndex(s.SampleIDs); err != nil {
		return core.NewConfigurationError("sample ids: %v", err)
	}
	for _, c := range s.Columns {
		switch c.Kind {
		case KindCategorical, KindContinuous:
		default:
			return core.NewConfigurationError("column %q has unknown kind %q", c.Name, c.Kind)
		}
		if c.Len() != len(s.SampleIDs) {
			return core.NewConfigurationError("column %q has %d values for %d samples", c.Name, c.Len(), len(s.SampleIDs))
		}
		if c.Kind == KindContinuous {
			for i, v := range c.Values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return core.NewConfigurationError("column %q has a non-finite value for sample %q", c.Name, s.SampleIDs[i])
				}
			}
		}
	}
	return nil
}

// BatchColumn finds the single batch-like column. A column is batch-like
// when its name equals "batch" ignoring case; zero or several matches are
// configuration errors.
func (s *SampleInfo) BatchColumn() (int, error) {
	found := -1
	for i, c := range s.Columns {
		if !strings.EqualFold(strings.TrimSpace(c.Name), BatchColumnName) {
			continue
		}
		if found >= 0 {
			return -1, core.NewConfigurationError("more than one batch-like column (%q and %q)", s.Columns[found].Name, c.Name)
		}
		found = i
	}
	if found < 0 {
		return -1, core.NewConfigurationError("no %q column was found", BatchColumnName)
	}
	if s.Columns[found].Kind != KindCategorical {
		return -1, core.NewConfigurationError("%q column must be categorical", s.Columns[found].Name)
	}
	for i, l := range s.Columns[found].Levels {
		if strings.TrimSpace(l) == "" {
			return -1, core.NewConfigurationError("sample %q has no batch label", s.SampleIDs[i])
		}
	}
	return found, nil
}

// SelectRows returns a copy restricted to the given sample positions.
func (s *SampleInfo) SelectRows(rows []int) *SampleInfo {
	ids := make([]string, len(rows))
	for j, r := range rows {
		ids[j] = s.SampleIDs[r]
	}
	out := NewSampleInfo(ids)
	for _, c := range s.Columns {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == KindContinuous {
			nc.Values = make([]float64, len(rows))
			for j, r := range rows {
				nc.Values[j] = c.Values[r]
			}
		} else {
			nc.Levels = make([]string, len(rows))
			for j, r := range rows {
				nc.Levels[j] = c.Levels[r]
			}
		}
		out.Columns = append(out.Columns, nc)
	}
	return out
}

// Reorder returns a copy whose rows follow order, which must name exactly the
// samples of the table. Used to align metadata with matrix columns.
func (s *SampleInfo) Reorder(order []string) (*SampleInfo, error) {
	idx, err := NewIndex(s.SampleIDs)
	if err != nil {
		return nil, core.NewConfigurationError("sample ids: %v", err)
	}
	perm, err := idx.Permutation(order)
	if err != nil {
		return nil, core.NewConfigurationError("sample info does not match matrix columns: %v", err)
	}
	return s.SelectRows(perm), nil
}
