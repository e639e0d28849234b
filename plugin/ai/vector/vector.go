// Package vector provides embedding arithmetic used by the map engine.
//
// Embeddings arrive as float32 (the storage format) and are widened to
// float64 once per generation so that centroid updates do not accumulate
// float32 rounding error.
package vector

import (
	"gonum.org/v1/gonum/floats"
)

// FromFloat32 widens an embedding. A nil or empty input returns nil.
func FromFloat32(v []float32) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Clone returns a copy of v.
func Clone(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Cosine returns the cosine similarity of a and b.
// A zero-norm vector has similarity 0 with everything.
// a and b must have the same length.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// Mean returns the element-wise mean of vecs, or nil when vecs is empty.
// All vectors must have the same length.
func Mean(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(vecs)), sum)
	return sum
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Equal reports whether a and b hold exactly the same values.
func Equal(a, b []float64) bool {
	return floats.Equal(a, b)
}
