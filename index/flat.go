// Package index implements an exact nearest-neighbour index over case embeddings.
package index

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned when building from no vectors.
	ErrEmptyIndex = errors.New("cannot build index from zero vectors")
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")
)

// FlatL2 is a brute-force index under squared Euclidean distance.
// Vectors live in one contiguous arena; position i occupies arena[i*dim:(i+1)*dim].
// The index is immutable after Build and safe for concurrent Search.
type FlatL2 struct {
	dim   int
	count int
	arena []float32
}

// Build copies the vectors, in order, into a new index. Every vector must share
// the dimension of the first one.
func Build(vectors [][]float32) (*FlatL2, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", ErrDimensionMismatch)
	}

	arena := make([]float32, 0, dim*len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
		arena = append(arena, v...)
	}

	return &FlatL2{dim: dim, count: len(vectors), arena: arena}, nil
}

// Len returns the number of stored vectors.
func (f *FlatL2) Len() int { return f.count }

// Dimension returns the dimensionality fixed at build time.
func (f *FlatL2) Dimension() int { return f.dim }

// Vector returns a copy of the stored vector at position i.
func (f *FlatL2) Vector(i int) ([]float32, error) {
	if i < 0 || i >= f.count {
		return nil, fmt.Errorf("position %d out of range [0,%d)", i, f.count)
	}
	out := make([]float32, f.dim)
	copy(out, f.arena[i*f.dim:(i+1)*f.dim])
	return out, nil
}

// Search returns the k nearest stored vectors, ascending by distance with ties
// broken by ascending position. When k exceeds the index size all entries are returned.
func (f *FlatL2) Search(query []float32, k int) ([]Match, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	if k > f.count {
		k = f.count
	}

	h := make(maxHeap, 0, k)
	for i := 0; i < f.count; i++ {
		m := Match{Position: i, Distance: squaredL2(query, f.arena[i*f.dim:(i+1)*f.dim])}
		if h.Len() < k {
			h.Push(m)
		} else if worse(h[0], m) {
			h.Replace(m)
		}
	}

	out := make([]Match, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.Pop()
	}
	return out, nil
}

// squaredL2 accumulates in float64.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
