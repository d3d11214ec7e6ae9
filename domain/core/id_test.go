package core

import (
	"errors"
	"math"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if NewRunID().String() == "" {
		t.Error("Expected run ID to be non-empty")
	}
}

// TestComputeMatrixHash checks that fingerprints follow values and labels
func TestComputeMatrixHash(t *testing.T) {
	rows := []string{"g1", "g2"}
	cols := []string{"s1", "s2"}
	values := [][]float64{{1, 2}, {3, math.NaN()}}

	a := ComputeMatrixHash(rows, cols, values)
	b := ComputeMatrixHash(rows, cols, [][]float64{{1, 2}, {3, math.NaN()}})
	if !a.Equals(b) {
		t.Errorf("Expected identical matrices to hash equally")
	}

	c := ComputeMatrixHash(rows, cols, [][]float64{{1, 2}, {3, 4}})
	if a.Equals(c) {
		t.Errorf("Expected different values to change the hash")
	}

	d := ComputeMatrixHash([]string{"g2", "g1"}, cols, values)
	if a.Equals(d) {
		t.Errorf("Expected different row labels to change the hash")
	}
}

// TestTypedErrorsUnwrap verifies the taxonomy is matchable with errors.Is/As
func TestTypedErrorsUnwrap(t *testing.T) {
	cfg := NewConfigurationError("batch %q has %d samples", "b1", 1)
	if !IsConfigurationError(cfg) || !IsCorrectionError(cfg) {
		t.Errorf("Expected configuration error, got %v", cfg)
	}

	rank := NewRankDeficiencyError(3, 4, "confound")
	var rde *RankDeficiencyError
	if !errors.As(rank, &rde) || rde.Rank != 3 || rde.Columns != 4 {
		t.Errorf("Expected RankDeficiencyError with rank 3/4, got %v", rank)
	}

	conv := NewConvergenceError("b2", 200, 0.01)
	var ce *ConvergenceError
	if !errors.As(conv, &ce) || ce.BatchID != "b2" {
		t.Errorf("Expected ConvergenceError naming b2, got %v", conv)
	}
	if IsConfigurationError(conv) {
		t.Errorf("Convergence error must not match configuration")
	}
}
