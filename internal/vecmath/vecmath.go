// Package vecmath holds the vector arithmetic used for indexing and search.
package vecmath

import (
	"errors"
	"math"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns dot(a, b) / (|a| * |b|) in float64.
// A zero-norm vector has similarity 0 with everything.
// Vectors of different length return ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Mean returns the element-wise arithmetic mean of vectors.
// All vectors must share one non-zero length.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("mean of zero vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("mean of empty vectors")
	}

	sums := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
		for i, x := range v {
			sums[i] += float64(x)
		}
	}

	n := float64(len(vectors))
	mean := make([]float32, dim)
	for i, s := range sums {
		mean[i] = float32(s / n)
	}
	return mean, nil
}
