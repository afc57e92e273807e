// Package hashing is an offline encoder based on feature hashing.
//
// Each lowercased word and word bigram is hashed into one of Dimension buckets
// with a hash-derived sign, and the result is L2-normalized so inner product is
// cosine similarity. Texts sharing vocabulary score higher. It needs no network
// and is deterministic, which makes it the default for local runs and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/courtside/internal/domain"
)

// DefaultDimension is used when no width is configured.
const DefaultDimension = 256

// Encoder implements domain.Encoder with feature hashing.
type Encoder struct {
	dim int
}

var _ domain.Encoder = (*Encoder)(nil)

// New creates a hashing encoder producing vectors of width dim.
func New(dim int) (*Encoder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing dimension must be positive, got %d", dim)
	}
	return &Encoder{dim: dim}, nil
}

// Dimension returns the vector width.
func (e *Encoder) Dimension() int { return e.dim }

// Encode hashes every text. It never fails except on a cancelled context.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Encoder) HealthCheck(_ context.Context) error { return nil }

func (e *Encoder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := tokenize(text)
	for i, w := range words {
		e.add(v, w, 1)
		if i > 0 {
			e.add(v, words[i-1]+" "+w, 0.5)
		}
	}
	domain.Normalize(v)
	return v
}

func (e *Encoder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % uint64(e.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

// tokenize splits on anything that is not a letter or digit. Dots inside a token
// are kept so model names like "mb.03" stay whole.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	words := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "."); f != "" {
			words = append(words, f)
		}
	}
	return words
}
