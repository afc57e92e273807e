// Package retrieval owns the vector index and document store and serves ingestion and search.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	domdoc "github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/review"
	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/request"
	"github.com/kailas-cloud/courtside/internal/domain/search/result"
	"github.com/kailas-cloud/courtside/internal/domain/search/strategy"
	"github.com/kailas-cloud/courtside/internal/index"
	logpkg "github.com/kailas-cloud/courtside/internal/logger"
	"github.com/kailas-cloud/courtside/internal/metrics"
	"github.com/kailas-cloud/courtside/internal/store"
	"github.com/kailas-cloud/courtside/internal/usecase/router"
)

// DefaultOverfetchFactor multiplies k for filtered searches so post-filtering has candidates to drop.
const DefaultOverfetchFactor = 2

// Config tunes the service. Zero values use defaults.
type Config struct {
	OverfetchFactor int
	Router          router.Config
	// CatalogMode is router.CatalogLive (default) or router.CatalogStatic.
	CatalogMode string
	// KnownModels seeds the catalog; nil uses router.DefaultKnownModels.
	KnownModels []string
	// QueryEncoder encodes search queries; nil uses the document encoder.
	QueryEncoder domain.Encoder
}

// Stats describes the current index.
type Stats struct {
	DocumentCount      int
	IndexSize          int
	EmbeddingDimension int
	KnownModels        int
}

// AddResult reports where an ingested batch landed.
type AddResult struct {
	Added         int
	FirstPosition int
	IDs           []string
	Persisted     bool
}

// Retrieval is everything the generation step needs to answer a query.
type Retrieval struct {
	Decision router.Decision
	Results  []result.Result
	// Degraded is set when the store could not be searched and the answer must rely on a live lookup.
	Degraded bool
}

// Service guards the index and store with one RWMutex. Encoding happens outside the lock;
// append and save run in one write critical section so the pair never diverges.
type Service struct {
	mu        sync.RWMutex
	idx       *index.Index
	st        *store.Store
	enc       domain.Encoder
	queryEnc  domain.Encoder
	persister Persister
	router    *router.Router
	overfetch int
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a service over a loaded (or empty) index and store.
// persister may be nil for an in-memory service.
func New(
	idx *index.Index, st *store.Store, enc domain.Encoder, persister Persister,
	cfg Config, logger *zap.Logger,
) (*Service, error) {
	if idx.Dimension() != enc.Dimension() {
		return nil, fmt.Errorf("index: %w", domain.NewDimensionMismatch(enc.Dimension(), idx.Dimension()))
	}
	queryEnc := cfg.QueryEncoder
	if queryEnc == nil {
		queryEnc = enc
	}
	if queryEnc.Dimension() != enc.Dimension() {
		return nil, fmt.Errorf("query encoder: %w", domain.NewDimensionMismatch(enc.Dimension(), queryEnc.Dimension()))
	}
	if idx.Size() != st.Size() {
		return nil, fmt.Errorf("index holds %d vectors but store holds %d documents", idx.Size(), st.Size())
	}
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = DefaultOverfetchFactor
	}
	known := cfg.KnownModels
	if known == nil {
		known = router.DefaultKnownModels
	}

	s := &Service{
		idx:       idx,
		st:        st,
		enc:       enc,
		queryEnc:  queryEnc,
		persister: persister,
		overfetch: cfg.OverfetchFactor,
		now:       time.Now,
		logger:    logger,
	}

	var catalog router.Catalog
	switch cfg.CatalogMode {
	case "", router.CatalogLive:
		catalog = router.NewLiveCatalog(known, s)
	case router.CatalogStatic:
		catalog = router.NewStaticCatalog(known)
	default:
		return nil, fmt.Errorf("unknown catalog mode %q", cfg.CatalogMode)
	}
	s.router = router.New(cfg.Router, catalog)

	metrics.DocumentsTotal.Set(float64(st.Size()))
	return s, nil
}

// AddReviews validates, encodes, and appends reviews, then persists the pair.
// Encoding failures and dimension mismatches leave the index and store untouched.
// A failed save is logged; the in-memory state stays authoritative.
func (s *Service) AddReviews(ctx context.Context, reviews []review.Review) (AddResult, error) {
	if len(reviews) == 0 {
		return AddResult{FirstPosition: s.Size()}, nil
	}

	now := s.now()
	docs := make([]domdoc.Document, len(reviews))
	texts := make([]string, len(reviews))
	for i := range reviews {
		doc, err := reviews[i].ToDocument(reviews[i].NewID(), now)
		if err != nil {
			return AddResult{}, fmt.Errorf("review %d: %w", i, err)
		}
		docs[i] = doc
		texts[i] = doc.Text()
	}

	vectors, err := s.enc.Encode(ctx, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrEncodingFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
		}
		return AddResult{}, fmt.Errorf("encode %d reviews: %w", len(texts), err)
	}
	if len(vectors) != len(docs) {
		return AddResult{}, fmt.Errorf("%w: expected %d vectors, got %d",
			domain.ErrEncodingFailure, len(docs), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.idx.Size()
	if err := s.idx.Insert(vectors); err != nil {
		return AddResult{}, fmt.Errorf("insert vectors: %w", err)
	}
	s.st.Append(docs)

	metrics.DocumentsTotal.Set(float64(s.st.Size()))
	metrics.DocumentsAddedTotal.Add(float64(len(docs)))

	res := AddResult{Added: len(docs), FirstPosition: first, IDs: make([]string, len(docs))}
	for i := range docs {
		res.IDs[i] = docs[i].ID()
	}
	res.Persisted = s.saveLocked(ctx)

	logpkg.FromContextOr(ctx, s.logger).Info("Reviews added",
		zap.Int("added", len(docs)),
		zap.Int("first_position", first),
		zap.Int("total", s.st.Size()),
		zap.Bool("persisted", res.Persisted),
	)
	return res, nil
}

// saveLocked persists the pair. Caller holds the write lock.
func (s *Service) saveLocked(ctx context.Context) bool {
	if s.persister == nil {
		return false
	}
	// The append already happened; a cancelled request must not abandon the save.
	if err := s.persister.Save(context.WithoutCancel(ctx), s.idx, s.st); err != nil {
		metrics.PersistenceFailuresTotal.WithLabelValues("save").Inc()
		logpkg.FromContextOr(ctx, s.logger).Warn("Failed to persist index, continuing in memory",
			zap.Int("documents", s.st.Size()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// SimilaritySearch returns up to k documents ranked by similarity to query.
// With a non-empty filter, k*overfetch candidates are fetched and filtered, so fewer than k may remain.
// A blank query or k <= 0 yields an empty list.
func (s *Service) SimilaritySearch(
	ctx context.Context, query string, k int, x filter.Expression,
) ([]result.Result, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []result.Result{}, nil
	}

	start := time.Now()
	vectors, err := s.queryEnc.Encode(ctx, []string{query})
	if err != nil {
		if !errors.Is(err, domain.ErrEncodingFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
		}
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrEncodingFailure, len(vectors))
	}

	fetch := k
	if !x.IsEmpty() {
		fetch = k * s.overfetch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.idx.Search(vectors[0], fetch)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]result.Result, 0, min(k, len(matches)))
	for _, m := range matches {
		doc, err := s.st.Get(m.Position)
		if err != nil {
			return nil, fmt.Errorf("resolve match: %w", err)
		}
		if !filter.Matches(&doc, x) {
			continue
		}
		results = append(results, result.New(m.Position, m.Score, doc))
		if len(results) == k {
			break
		}
	}

	metrics.SearchDuration.WithLabelValues(strconv.FormatBool(!x.IsEmpty())).Observe(time.Since(start).Seconds())
	return results, nil
}

// Route returns the routing decision for a query without searching.
func (s *Service) Route(query string, prefs request.Preferences) router.Decision {
	d := s.router.Decide(query, prefs)
	metrics.RoutingDecisionsTotal.WithLabelValues(string(d.Strategy)).Inc()
	return d
}

// Retrieve routes the request and, when the strategy reads the store, runs a filtered search.
// Store failures never fail the call: the result is marked degraded and routed to a live lookup.
func (s *Service) Retrieve(ctx context.Context, req *request.Request) Retrieval {
	// Routing reads the live catalog, which takes the read lock itself.
	out := Retrieval{Decision: s.Route(req.Query(), req.Preferences()), Results: []result.Result{}}
	if !out.Decision.Strategy.UsesStore() {
		return out
	}

	results, err := s.SimilaritySearch(ctx, req.Query(), req.K(), out.Decision.Filter)
	if err != nil {
		logpkg.FromContextOr(ctx, s.logger).Warn("Store retrieval failed, falling back to live lookup",
			zap.String("strategy", string(out.Decision.Strategy)),
			zap.Error(err),
		)
		out.Decision.Strategy = strategy.LiveLookupOnly
		out.Degraded = true
		return out
	}
	out.Results = results
	return out
}

// Get returns the document at pos.
func (s *Service) Get(pos int) (domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.st.Get(pos)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ShoeModels lists the distinct shoe models in the store.
func (s *Service) ShoeModels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ShoeModels()
}

// Size returns the number of stored documents.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Size()
}

// Stats reports index statistics.
func (s *Service) Stats() Stats {
	known := len(s.router.KnownModels())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		DocumentCount:      s.st.Size(),
		IndexSize:          s.idx.Size(),
		EmbeddingDimension: s.idx.Dimension(),
		KnownModels:        known,
	}
}
