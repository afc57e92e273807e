package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/courtside/internal/db"
	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/store"
)

// kvStore is the consumer interface for the redis backend (ISP).
type kvStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetMulti(ctx context.Context, items []db.KVItem) error
}

// RedisBackend persists snapshots as two keys written with one MSET.
type RedisBackend struct {
	store        kvStore
	vectorsKey   string
	documentsKey string
}

var _ Persister = (*RedisBackend)(nil)

// NewRedisBackend creates a redis backend. prefix defaults to domain.KeyPrefix.
func NewRedisBackend(s kvStore, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &RedisBackend{
		store:        s,
		vectorsKey:   prefix + "snapshot:index",
		documentsKey: prefix + "snapshot:documents",
	}
}

// Ping checks database connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

// Load reads both keys. Neither present is ErrNoState; only one present is corruption.
func (b *RedisBackend) Load(ctx context.Context) (*index.Index, *store.Store, error) {
	vectorData, vErr := b.store.Get(ctx, b.vectorsKey)
	documentData, dErr := b.store.Get(ctx, b.documentsKey)

	vMissing := errors.Is(vErr, db.ErrKeyNotFound)
	dMissing := errors.Is(dErr, db.ErrKeyNotFound)
	switch {
	case vMissing && dMissing:
		return nil, nil, ErrNoState
	case vErr != nil:
		return nil, nil, fmt.Errorf("%w: get %s: %w", domain.ErrPersistenceUnavailable, b.vectorsKey, vErr)
	case dErr != nil:
		return nil, nil, fmt.Errorf("%w: get %s: %w", domain.ErrPersistenceUnavailable, b.documentsKey, dErr)
	}

	return assemble(vectorData, documentData)
}

// Save overwrites both keys atomically.
func (b *RedisBackend) Save(ctx context.Context, idx *index.Index, st *store.Store) error {
	vectorData, documentData, err := encode(idx, st)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	err = b.store.SetMulti(ctx, []db.KVItem{
		{Key: b.vectorsKey, Value: vectorData},
		{Key: b.documentsKey, Value: documentData},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}
