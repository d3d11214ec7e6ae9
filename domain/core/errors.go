package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrConfiguration covers unusable sample metadata: no batch column,
	// too few samples, singleton batches, inconsistent tables.
	ErrConfiguration = errors.New("batch correction configuration invalid")

	// ErrRankDeficiency is returned when the design matrix is not of full
	// rank or standardization produced no finite values at all.
	ErrRankDeficiency = errors.New("model matrix is not of full rank")

	// ErrConvergence is returned when the shrinkage solve of some batch
	// does not meet its tolerance within the iteration cap.
	ErrConvergence = errors.New("empirical bayes shrinkage failed to converge")

	// ErrNotSupported marks entry points that exist but are deliberately
	// unimplemented (non-parametric shrinkage).
	ErrNotSupported = errors.New("operation not supported")

	// Lookup errors
	ErrUnknownID   = errors.New("unknown identifier")
	ErrDuplicateID = errors.New("duplicate identifier")
)

// ConfigurationError describes why sample metadata cannot be used.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// RankDeficiencyError carries the observed rank of the offending block.
type RankDeficiencyError struct {
	Rank    int
	Columns int
	Reason  string
}

func (e *RankDeficiencyError) Error() string {
	if e.Columns > 0 {
		return fmt.Sprintf("%v (rank %d < %d columns): %s", ErrRankDeficiency, e.Rank, e.Columns, e.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrRankDeficiency, e.Reason)
}

func (e *RankDeficiencyError) Unwrap() error { return ErrRankDeficiency }

// ConvergenceError names the batch whose fixed point was not reached.
type ConvergenceError struct {
	BatchID    string
	Iterations int
	Change     float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v: batch %q after %d iterations, last change was %.2g",
		ErrConvergence, e.BatchID, e.Iterations, e.Change)
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// Error constructors with context
func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func NewRankDeficiencyError(rank, columns int, reason string) error {
	return &RankDeficiencyError{Rank: rank, Columns: columns, Reason: reason}
}

func NewConvergenceError(batchID string, iterations int, change float64) error {
	return &ConvergenceError{BatchID: batchID, Iterations: iterations, Change: change}
}

func NewUnknownIDError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownID, kind, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsRankDeficiencyError(err error) bool {
	return errors.Is(err, ErrRankDeficiency)
}

func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrConvergence)
}

// IsCorrectionError reports whether err belongs to the batch-correction
// taxonomy. All of them abort a run; none is retried internally.
func IsCorrectionError(err error) bool {
	return IsConfigurationError(err) ||
		IsRankDeficiencyError(err) ||
		IsConvergenceError(err) ||
		errors.Is(err, ErrNotSupported)
}
