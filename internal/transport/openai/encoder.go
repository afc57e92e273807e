package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/metrics"
)

// Encoder turns texts into vectors via an OpenAI-compatible embeddings API.
type Encoder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	retries    uint
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ domain.Encoder = (*Encoder)(nil)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Retries    uint
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible encoder. Dimensions is required:
// the vector index is built for a fixed width before the first call.
func NewEncoder(cfg *Config) (*Encoder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Encoder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		retries:    retries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

// Dimension returns the configured vector width.
func (e *Encoder) Dimension() int { return e.dimensions }

// Encode implements domain.Encoder. One API call per batch, retried on transient failures.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
		Dimensions:     e.dimensions,
	}
	model := string(e.model)

	start := time.Now()
	var resp openai.EmbeddingResponse
	err := retry.Do(
		func() error {
			r, err := e.client.CreateEmbeddings(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Attempts(e.retries),
		retry.Delay(e.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Debug("Retrying embedding request",
				zap.Uint("attempt", n+1),
				zap.Int("texts", len(texts)),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "api_error").Inc()
		return nil, parseAPIError(err)
	}

	vectors, err := e.collect(resp, len(texts))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "bad_response").Inc()
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(time.Since(start).Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}
	return vectors, nil
}

// collect orders response rows by their index, checks the batch is complete and
// unit-normalizes every row.
func (e *Encoder) collect(resp openai.EmbeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrEncodingFailure, n, len(resp.Data))
	}
	vectors := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", domain.ErrEncodingFailure, d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailure,
				domain.NewDimensionMismatch(e.dimensions, len(d.Embedding)))
		}
		domain.Normalize(d.Embedding)
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// isRetryable reports whether a failed call may succeed if repeated:
// rate limits, server errors and transport failures. Client errors are final.
func isRetryable(err error) bool {
	status := 0
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	default:
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEncodingFailure.
func parseAPIError(err error) error {
	wrap := domain.ErrEncodingFailure

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
