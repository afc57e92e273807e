package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/config"
	dbRedis "github.com/kailas-cloud/courtside/internal/db/redis"
	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/encoder/hashing"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/metrics"
	"github.com/kailas-cloud/courtside/internal/repository/embcache"
	"github.com/kailas-cloud/courtside/internal/repository/snapshot"
	"github.com/kailas-cloud/courtside/internal/store"
	openaiEnc "github.com/kailas-cloud/courtside/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/courtside/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/courtside/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/courtside/internal/usecase/retrieval"
	"github.com/kailas-cloud/courtside/internal/usecase/router"
)

// backend is a snapshot persister that can also report its health.
type backend interface {
	snapshot.Persister
	Ping(ctx context.Context) error
}

// app is the composition root shared by every command.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	kv        *dbRedis.Store
	backend   backend
	retrieval *retrievaluc.Service
	health    *healthuc.Service
}

// newApp wires storage, encoders and the retrieval service.
// Unreadable persisted state is logged and replaced with an empty index.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Persistence.Driver == config.PersistenceRedis {
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Persistence.Addrs,
			Password: cfg.Persistence.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.kv = kv
		timeout := time.Duration(cfg.Persistence.ReadinessTimeout) * time.Second
		if err := kv.WaitForReady(ctx, timeout); err != nil {
			a.close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Persistence.Addrs))
	}

	switch cfg.Persistence.Driver {
	case config.PersistenceFile:
		fb, err := snapshot.NewFileBackend(cfg.Persistence.DataDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create file backend: %w", err)
		}
		a.backend = fb
	case config.PersistenceRedis:
		a.backend = snapshot.NewRedisBackend(a.kv, cfg.Persistence.KeyPrefix)
	}

	docEncoder, err := buildEncoder(&cfg.Embedding, cfg.Embedding.DocumentInstruction, a.kv, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build document encoder: %w", err)
	}
	queryEncoder, err := buildEncoder(&cfg.Embedding, cfg.Embedding.QueryInstruction, a.kv, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build query encoder: %w", err)
	}
	logger.Info("Encoders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", docEncoder.Dimension()),
	)

	idx, st, err := a.loadState(ctx, docEncoder.Dimension())
	if err != nil {
		a.close()
		return nil, err
	}

	// Pass a nil interface, not a typed nil pointer, when persistence is off.
	var persister retrievaluc.Persister
	var pinger healthuc.PersistencePinger
	if a.backend != nil {
		persister = a.backend
		pinger = a.backend
	}

	a.retrieval, err = retrievaluc.New(idx, st, docEncoder, persister, retrievaluc.Config{
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
		Router: router.Config{
			PriceKeywords:    cfg.Router.PriceKeywords,
			TemporalKeywords: cfg.Router.TemporalKeywords,
			Brands:           cfg.Router.Brands,
		},
		CatalogMode:  cfg.Router.CatalogMode,
		KnownModels:  cfg.Router.KnownModels,
		QueryEncoder: queryEncoder,
	}, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create retrieval service: %w", err)
	}

	a.health = healthuc.New(pinger, docEncoder)
	return a, nil
}

// loadState restores the index and store from the backend, or starts empty.
func (a *app) loadState(ctx context.Context, dim int) (*index.Index, *store.Store, error) {
	if a.backend == nil {
		idx, err := index.New(dim)
		if err != nil {
			return nil, nil, fmt.Errorf("create index: %w", err)
		}
		a.logger.Info("Persistence disabled, starting with an empty in-memory index")
		return idx, store.New(), nil
	}

	// Load failures are logged and counted inside; startup continues with an empty index.
	idx, st, _ := snapshot.LoadOrEmpty(ctx, a.backend, dim, a.logger)
	return idx, st, nil
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
}

// buildEncoder assembles the decorator chain: provider -> cache -> instrumented -> instruction.
func buildEncoder(
	cfg *config.EmbeddingConfig, instruction string, kv *dbRedis.Store, logger *zap.Logger,
) (domain.Encoder, error) {
	var (
		base  domain.Encoder
		model = cfg.Model
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		enc, err := openaiEnc.NewEncoder(&openaiEnc.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Retries:    cfg.Retries,
			RetryDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai encoder: %w", err)
		}
		base = enc
	case config.ProviderHashing:
		enc, err := hashing.New(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("create hashing encoder: %w", err)
		}
		base = enc
		model = config.ProviderHashing
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	encoder := base
	if cfg.Cache.Enabled && kv != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		encoder = embcache.New(encoder, kv, model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	encoder = embeddinguc.NewInstrumentedEncoder(encoder, cfg.Provider, model, cfg.MaxBatchSize, logger)

	// Outermost, so cache keys include the instruction.
	if instruction != "" {
		return domain.NewInstructionEncoder(encoder, instruction), nil
	}
	return encoder, nil
}
