// Package index is an exact inner-product vector index.
//
// Vectors are stored row-major in one contiguous slice and addressed by the
// ordinal position they were inserted at. Search is brute force with a bounded
// top-k heap, which is enough for the thousands-of-documents scale courtside
// targets. An Index is not safe for concurrent mutation; the owning service
// serializes writes.
package index

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/kailas-cloud/courtside/internal/domain"
)

// Match is a single search hit: the vector's position and its similarity score.
type Match struct {
	Position int
	Score    float64
}

// Index holds fixed-width vectors.
type Index struct {
	dim  int
	data []float32
}

// New creates an empty index for vectors of the given width.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	return &Index{dim: dim}, nil
}

// FromRaw hydrates an index from row-major vector data (persistence).
func FromRaw(dim int, data []float32) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("raw data length %d is not a multiple of dimension %d", len(data), dim)
	}
	return &Index{dim: dim, data: data}, nil
}

// Dimension returns the fixed vector width.
func (x *Index) Dimension() int { return x.dim }

// Size returns the number of stored vectors.
func (x *Index) Size() int { return len(x.data) / x.dim }

// Insert appends vectors in order. If any vector has the wrong width nothing is appended.
func (x *Index) Insert(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("insert vector %d: %w", i, domain.NewDimensionMismatch(x.dim, len(v)))
		}
	}
	grown := make([]float32, len(x.data), len(x.data)+len(vectors)*x.dim)
	copy(grown, x.data)
	for _, v := range vectors {
		grown = append(grown, v...)
	}
	x.data = grown
	return nil
}

// Vector returns a copy of the vector at pos.
func (x *Index) Vector(pos int) ([]float32, error) {
	if pos < 0 || pos >= x.Size() {
		return nil, fmt.Errorf("vector %d of %d: %w", pos, x.Size(), domain.ErrOutOfRange)
	}
	out := make([]float32, x.dim)
	copy(out, x.data[pos*x.dim:(pos+1)*x.dim])
	return out, nil
}

// Raw returns the row-major vector data. Callers must not modify it.
func (x *Index) Raw() []float32 { return x.data }

// Search returns up to k matches ordered by descending inner product.
// Equal scores are ordered by insertion position, earliest first.
// An empty index or k <= 0 yields an empty result, never an error.
func (x *Index) Search(query []float32, k int) ([]Match, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: %w", domain.NewDimensionMismatch(x.dim, len(query)))
	}
	n := x.Size()
	if k <= 0 || n == 0 {
		return []Match{}, nil
	}
	if k > n {
		k = n
	}

	h := make(matchHeap, 0, k)
	for pos := 0; pos < n; pos++ {
		m := Match{Position: pos, Score: dot(query, x.data[pos*x.dim:(pos+1)*x.dim])}
		if len(h) < k {
			heap.Push(&h, m)
			continue
		}
		if better(m, h[0]) {
			h[0] = m
			heap.Fix(&h, 0)
		}
	}

	out := []Match(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// better reports whether a ranks ahead of b.
func better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

// matchHeap keeps the worst retained match at the root.
type matchHeap []Match

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(v any)        { *h = append(*h, v.(Match)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
