// Package metric implements the cosine distance used to place and rank vectors.
package metric

import (
	"fmt"

	"github.com/hupe1980/hnswstore/internal/math32"
)

// MaxDistance is the distance reported when either vector has zero magnitude.
const MaxDistance float32 = 1.0

// ErrDimensionMismatch is returned when two vectors of different lengths are compared.
type ErrDimensionMismatch struct {
	Expected int // Length of the first vector
	Actual   int // Length of the second vector
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Magnitude calculates the magnitude (length) of a float32 slice.
func Magnitude(v []float32) float32 {
	return math32.Sqrt(math32.SquaredNorm(v))
}

// CosineSimilarity calculates the cosine similarity between two float32 slices.
// A zero-magnitude operand yields a similarity of 0.
func CosineSimilarity(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, &ErrDimensionMismatch{Expected: len(v1), Actual: len(v2)}
	}

	return cosineSimilarity(v1, v2), nil
}

// CosineDistance calculates 1 - cosine similarity.
//
// Vectors with zero magnitude are maximally dissimilar from everything, including
// another zero vector, so the result is MaxDistance instead of NaN.
// The result is clamped to [0, 2].
func CosineDistance(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, &ErrDimensionMismatch{Expected: len(v1), Actual: len(v2)}
	}

	return Cosine(v1, v2), nil
}

// Cosine is CosineDistance without the length check.
// It panics if v2 is shorter than v1.
func Cosine(v1, v2 []float32) float32 {
	magnitudeA := Magnitude(v1)
	magnitudeB := Magnitude(v2)

	if magnitudeA == 0 || magnitudeB == 0 {
		return MaxDistance
	}

	d := 1 - math32.Dot(v1, v2)/(magnitudeA*magnitudeB)

	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	default:
		return d
	}
}

func cosineSimilarity(v1, v2 []float32) float32 {
	magnitudeA := Magnitude(v1)
	magnitudeB := Magnitude(v2)

	// Avoid division by zero
	if magnitudeA == 0 || magnitudeB == 0 {
		return 0
	}

	return math32.Dot(v1, v2) / (magnitudeA * magnitudeB)
}
