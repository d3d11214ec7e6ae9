package testkit

import (
	"fmt"
	"math/rand"

	"gocombat/domain/expression"
)

// BatchGeneratorConfig configures the synthetic batch-effect generator
type BatchGeneratorConfig struct {
	Features        int     `json:"features"`
	Batches         int     `json:"batches"`
	SamplesPerBatch int     `json:"samples_per_batch"`
	TreatedPerBatch int     `json:"treated_per_batch"`
	Baseline        float64 `json:"baseline"`         // mean expression level
	FeatureSpread   float64 `json:"feature_spread"`   // sd of per-feature offsets
	BatchShift      float64 `json:"batch_shift"`      // additive shift per batch index
	BatchScale      float64 `json:"batch_scale"`      // noise multiplier per batch index
	TreatmentEffect float64 `json:"treatment_effect"` // additive effect on treated samples
	Noise           float64 `json:"noise"`            // sd of measurement noise
	Shuffle         bool    `json:"shuffle"`          // shuffle matrix columns
	Seed            int64   `json:"seed"`
}

// DefaultBatchConfig returns 100 features over two batches of ten samples,
// five treated per batch, with a +3 shift on the second batch.
func DefaultBatchConfig() BatchGeneratorConfig {
	return BatchGeneratorConfig{
		Features:        100,
		Batches:         2,
		SamplesPerBatch: 10,
		TreatedPerBatch: 5,
		Baseline:        8,
		FeatureSpread:   1,
		BatchShift:      3,
		BatchScale:      0,
		TreatmentEffect: 2,
		Noise:           0.5,
		Shuffle:         true,
		Seed:            42,
	}
}

// SyntheticDataset is a generated matrix with its sample table. Info lists
// samples in generation order while Data columns may be shuffled; Treated
// and BatchOf are indexed by Data column.
type SyntheticDataset struct {
	Data    *expression.DataMatrix
	Info    *expression.SampleInfo
	Treated []bool
	BatchOf []int
}

// BatchLabel returns the label used for batch b.
func BatchLabel(b int) string { return fmt.Sprintf("B%d", b+1) }

// GenerateBatchEffectData builds a deterministic dataset:
//
//	y[f,s] = Baseline + offset[f] + b*BatchShift + treated*TreatmentEffect + noise
//
// where noise has sd Noise*(1 + b*BatchScale).
func GenerateBatchEffectData(config BatchGeneratorConfig) *SyntheticDataset {
	rng := rand.New(rand.NewSource(config.Seed))
	numSamples := config.Batches * config.SamplesPerBatch

	sampleIDs := make([]string, numSamples)
	batchLabels := make([]string, numSamples)
	treatment := make([]string, numSamples)
	batchOf := make([]int, numSamples)
	treated := make([]bool, numSamples)
	for b := 0; b < config.Batches; b++ {
		for i := 0; i < config.SamplesPerBatch; i++ {
			s := b*config.SamplesPerBatch + i
			sampleIDs[s] = fmt.Sprintf("S%03d", s+1)
			batchLabels[s] = BatchLabel(b)
			batchOf[s] = b
			treated[s] = i < config.TreatedPerBatch
			treatment[s] = "control"
			if treated[s] {
				treatment[s] = "treated"
			}
		}
	}

	info := expression.NewSampleInfo(sampleIDs).
		AddCategorical(expression.BatchColumnName, batchLabels).
		AddCategorical("treatment", treatment)

	order := make([]int, numSamples)
	for i := range order {
		order[i] = i
	}
	if config.Shuffle {
		order = rng.Perm(numSamples)
	}

	featureIDs := make([]string, config.Features)
	for f := range featureIDs {
		featureIDs[f] = fmt.Sprintf("F%04d", f+1)
	}
	colIDs := make([]string, numSamples)
	colBatch := make([]int, numSamples)
	colTreated := make([]bool, numSamples)
	for j, s := range order {
		colIDs[j] = sampleIDs[s]
		colBatch[j] = batchOf[s]
		colTreated[j] = treated[s]
	}

	data := expression.NewDataMatrix(featureIDs, colIDs)
	for f := 0; f < config.Features; f++ {
		offset := rng.NormFloat64() * config.FeatureSpread
		for j := 0; j < numSamples; j++ {
			b := float64(colBatch[j])
			v := config.Baseline + offset + b*config.BatchShift
			if colTreated[j] {
				v += config.TreatmentEffect
			}
			v += rng.NormFloat64() * config.Noise * (1 + b*config.BatchScale)
			data.Values[f][j] = v
		}
	}

	return &SyntheticDataset{
		Data:    data,
		Info:    info,
		Treated: colTreated,
		BatchOf: colBatch,
	}
}
