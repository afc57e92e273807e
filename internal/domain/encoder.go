package domain

import (
	"context"
	"fmt"
	"math"
)

// KeyPrefix namespaces every key courtside writes to a shared key-value store.
const KeyPrefix = "courtside:"

// Encoder maps texts to fixed-width vectors. Implementations must be deterministic
// for a given model version and return one vector per input text, in order.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// HealthChecker verifies encoder provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// InstructionEncoder is a decorator that prepends instruction text before encoding.
// Asymmetric embedding models expect different prefixes for documents and queries.
type InstructionEncoder struct {
	inner       Encoder
	instruction string
}

// NewInstructionEncoder creates a decorator that prepends instruction text.
func NewInstructionEncoder(inner Encoder, instruction string) *InstructionEncoder {
	return &InstructionEncoder{inner: inner, instruction: instruction}
}

// Encode prepends the instruction to each text and delegates to the inner encoder.
func (e *InstructionEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	vecs, err := e.inner.Encode(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("instruction encode: %w", err)
	}
	return vecs, nil
}

// Dimension returns the inner encoder's output width.
func (e *InstructionEncoder) Dimension() int { return e.inner.Dimension() }

// HealthCheck delegates to the inner encoder when it supports health checks.
func (e *InstructionEncoder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
