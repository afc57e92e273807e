// Package snapshot persists the vector index and document store as a pair of artifacts.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/metrics"
	"github.com/kailas-cloud/courtside/internal/store"
)

// ErrNoState signals that no snapshot has been written yet.
var ErrNoState = errors.New("no persisted state")

// ErrTrailingVectors signals a save interrupted between the two artifacts: the vectors
// run ahead of the documents. Load returns it together with the pair cut back to the
// documents, which is the last complete save.
var ErrTrailingVectors = errors.New("vectors ahead of documents")

// Persister reads and writes the (index, store) pair.
// Load returns ErrNoState when nothing was saved, ErrTrailingVectors with a usable pair
// after an interrupted save, and an error wrapping domain.ErrPersistenceUnavailable when
// the state exists but cannot be used.
type Persister interface {
	Load(ctx context.Context) (*index.Index, *store.Store, error)
	Save(ctx context.Context, idx *index.Index, st *store.Store) error
}

// LoadOrEmpty loads persisted state, falling back to an empty pair bound to dimension
// when nothing was saved, the state is unreadable, or it was built with another dimension.
// Vectors left over from an interrupted save are dropped and the last complete save is kept.
// Startup never fails on persistence; the returned error only reports why state was discarded.
func LoadOrEmpty(
	ctx context.Context, p Persister, dimension int, logger *zap.Logger,
) (*index.Index, *store.Store, error) {
	idx, st, err := p.Load(ctx)
	if errors.Is(err, ErrTrailingVectors) {
		metrics.PersistenceFailuresTotal.WithLabelValues("trim").Inc()
		logger.Warn("Dropped vectors of an interrupted save",
			zap.Int("documents", st.Size()),
			zap.Error(err),
		)
		err = nil
	}

	switch {
	case err == nil && idx.Dimension() != dimension:
		err = fmt.Errorf("%w: persisted dimension %d, encoder dimension %d",
			domain.ErrPersistenceUnavailable, idx.Dimension(), dimension)
	case errors.Is(err, ErrNoState):
		logger.Info("No persisted state, starting with an empty index", zap.Int("dimension", dimension))
		return mustEmpty(dimension), store.New(), nil
	}

	if err != nil {
		metrics.PersistenceFailuresTotal.WithLabelValues("load").Inc()
		logger.Warn("Discarding persisted state, starting with an empty index",
			zap.Int("dimension", dimension),
			zap.Error(err),
		)
		return mustEmpty(dimension), store.New(), err
	}

	logger.Info("Loaded persisted state",
		zap.Int("documents", st.Size()),
		zap.Int("dimension", dimension),
	)
	return idx, st, nil
}

// assemble decodes both artifacts and checks that they describe the same positions.
func assemble(vectorData, documentData []byte) (*index.Index, *store.Store, error) {
	idx, err := decodeVectors(vectorData)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	docs, err := decodeDocuments(documentData)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	switch {
	case len(docs) > idx.Size():
		return nil, nil, fmt.Errorf("%w: %d documents but %d vectors",
			domain.ErrPersistenceUnavailable, len(docs), idx.Size())
	case len(docs) < idx.Size():
		// Ingestion is append-only, so the shorter artifact is a prefix of the longer one.
		dropped := idx.Size() - len(docs)
		idx, err = index.FromRaw(idx.Dimension(), slices.Clip(idx.Raw()[:len(docs)*idx.Dimension()]))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
		}
		return idx, store.FromDocuments(docs), fmt.Errorf("%w: dropped %d of %d vectors",
			ErrTrailingVectors, dropped, dropped+len(docs))
	}
	return idx, store.FromDocuments(docs), nil
}

// encode serializes both artifacts. Callers hold the owner's lock so the pair is consistent.
func encode(idx *index.Index, st *store.Store) (vectorData, documentData []byte, err error) {
	if idx.Size() != st.Size() {
		return nil, nil, fmt.Errorf("refusing to save %d documents with %d vectors", st.Size(), idx.Size())
	}
	documentData, err = encodeDocuments(st.All())
	if err != nil {
		return nil, nil, err
	}
	return encodeVectors(idx), documentData, nil
}

func mustEmpty(dimension int) *index.Index {
	idx, err := index.New(dimension)
	if err != nil {
		panic(fmt.Sprintf("snapshot: %v", err))
	}
	return idx
}
