package hnswstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hnswstore/internal/hnsw"
	"github.com/hupe1980/hnswstore/metric"
	"github.com/hupe1980/hnswstore/resource"
)

var (
	// ErrNotInitialized is returned by Search when no index has been built, or
	// after Clear.
	ErrNotInitialized = errors.New("index not initialized")

	// ErrInvalidInput is matched by every error caused by bad arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidK is returned when topK is negative.
	ErrInvalidK = fmt.Errorf("%w: k must not be negative", ErrInvalidInput)

	// ErrResourceExhausted is returned when a build does not fit the memory budget.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
// It matches ErrInvalidInput.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// Is reports whether target is ErrInvalidInput.
func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrInvalidInput }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already public.
	var pdm *ErrDimensionMismatch
	if errors.As(err, &pdm) {
		return err
	}

	// Dimension and argument normalization.
	var hdm *hnsw.ErrDimensionMismatch
	if errors.As(err, &hdm) {
		return &ErrDimensionMismatch{Expected: hdm.Expected, Actual: hdm.Actual, cause: err}
	}
	var mdm *metric.ErrDimensionMismatch
	if errors.As(err, &mdm) {
		return &ErrDimensionMismatch{Expected: mdm.Expected, Actual: mdm.Actual, cause: err}
	}
	var id *hnsw.ErrInvalidDimension
	if errors.As(err, &id) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}

	return err
}
