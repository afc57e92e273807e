package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/metrics"
)

// DefaultMaxBatchSize is the largest number of texts sent to the inner encoder in one call.
const DefaultMaxBatchSize = 256

// InstrumentedEncoder splits large batches and logs every encoder call.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEncoder struct {
	inner        domain.Encoder
	provider     string
	model        string
	maxBatchSize int
	logger       *zap.Logger
}

var _ domain.Encoder = (*InstrumentedEncoder)(nil)

// NewInstrumentedEncoder wraps an encoder. maxBatchSize <= 0 uses DefaultMaxBatchSize.
func NewInstrumentedEncoder(
	inner domain.Encoder, provider, model string, maxBatchSize int, logger *zap.Logger,
) *InstrumentedEncoder {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &InstrumentedEncoder{
		inner:        inner,
		provider:     provider,
		model:        model,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// Dimension delegates to the inner encoder.
func (p *InstrumentedEncoder) Dimension() int { return p.inner.Dimension() }

// Encode delegates in chunks of at most maxBatchSize texts. Any chunk failing fails the call;
// vectors are returned only when every text was encoded, all with the expected width.
func (p *InstrumentedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	out := make([][]float32, 0, len(texts))

	for offset := 0; offset < len(texts); offset += p.maxBatchSize {
		end := min(offset+p.maxBatchSize, len(texts))
		chunk := texts[offset:end]

		vectors, err := p.inner.Encode(ctx, chunk)
		if err != nil {
			p.logger.Error("Encoding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("encode chunk at %d: %w", offset, err)
		}
		if err := p.check(vectors, len(chunk)); err != nil {
			metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "bad_response").Inc()
			return nil, err
		}
		out = append(out, vectors...)
	}

	p.logger.Debug("Encoding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("dimensions", p.inner.Dimension()),
	)
	return out, nil
}

// HealthCheck delegates to the inner encoder when it supports health checks.
func (p *InstrumentedEncoder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

func (p *InstrumentedEncoder) check(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEncodingFailure, want, len(vectors))
	}
	dim := p.inner.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d: %w", domain.ErrEncodingFailure, i, domain.NewDimensionMismatch(dim, len(v)))
		}
	}
	return nil
}
