package retrieval

import (
	"context"

	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/store"
)

// Persister saves the (index, store) pair after every successful ingestion.
type Persister interface {
	Save(ctx context.Context, idx *index.Index, st *store.Store) error
}
