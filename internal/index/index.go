// Package index provides an exact in-memory nearest-neighbor index over the
// vectors of a single retrieval scope. Corpora are one document or one
// outlet, so a brute-force scan is both correct and fast enough.
package index

import (
	"errors"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's dimension disagrees with
// the index. This usually means the embedding model changed between upload
// and query and must be fixed operationally, not retried.
var ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

// Result is one search hit: squared-Euclidean distance to the query and the
// position of the vector in insertion order.
type Result struct {
	Distance float32
	Position int
}

// Index holds the vectors of one scope. It is immutable once built.
type Index struct {
	vectors   [][]float32
	dimension int
}

// New builds an index over the given vectors. All vectors must share one
// dimension. An empty input yields a valid index that matches nothing.
func New(vectors [][]float32) (*Index, error) {
	idx := &Index{}
	for _, v := range vectors {
		if idx.dimension == 0 {
			idx.dimension = len(v)
		}
		if len(v) == 0 || len(v) != idx.dimension {
			return nil, ErrDimensionMismatch
		}
		idx.vectors = append(idx.vectors, v)
	}
	return idx, nil
}

// Len reports the number of indexed vectors.
func (idx *Index) Len() int {
	return len(idx.vectors)
}

// Dimension reports the vector dimension, 0 for an empty index.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Search returns the k nearest vectors to query in ascending distance order.
// Ties keep insertion order. The result has min(k, Len()) entries; searching
// an empty index returns no results.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(query) != idx.dimension {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]Result, len(idx.vectors))
	for i, v := range idx.vectors {
		results[i] = Result{Distance: squaredL2(query, v), Position: i}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// squaredL2 computes the squared Euclidean distance between two vectors of
// equal length.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
