// Package biometric implements the face vector matching engine: Euclidean
// distance over fixed-length embeddings, duplicate detection at enrollment
// time and identification at the access gate. The engine is stateless; it
// operates only on the vectors handed to it.
package biometric

import (
	"fmt"
	"math"
)

// VectorDim is the embedding length produced by the face embedding service.
const VectorDim = 128

// DimensionMismatchError reports two vectors of unequal length. It signals
// corrupted stored data or an incompatible embedding model version, not a
// failed match.
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// EuclideanDistance computes the Euclidean distance between two vectors.
// Both vectors must have the same non-zero length. Accumulation happens in
// float64 to avoid rounding drift across 128 components.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Similarity converts a distance into a display score in [0, 1].
// Distances above 1 clamp to 0.
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
