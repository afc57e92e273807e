package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/review"
	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/request"
	"github.com/kailas-cloud/courtside/internal/domain/search/result"
	"github.com/kailas-cloud/courtside/internal/domain/search/strategy"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
	"github.com/kailas-cloud/courtside/internal/encoder/hashing"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/store"
	"github.com/kailas-cloud/courtside/internal/usecase/router"
)

// --- Mocks ---

// axisEncoder maps a text to the unit vector of the first axis keyword it contains.
// Texts with no keyword get the last axis.
type axisEncoder struct {
	mu      sync.Mutex
	axes    []string
	err     error
	wrongBy int
	calls   int
}

func newAxisEncoder(axes ...string) *axisEncoder { return &axisEncoder{axes: axes} }

func (e *axisEncoder) Dimension() int { return len(e.axes) }

func (e *axisEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.axes)+e.wrongBy)
		axis := len(e.axes) - 1
		for a, kw := range e.axes {
			if strings.Contains(strings.ToLower(t), kw) {
				axis = a
				break
			}
		}
		v[axis] = 1
		out[i] = v
	}
	return out, nil
}

type mockPersister struct {
	mu    sync.Mutex
	err   error
	saves int
	sizes []int
}

func (m *mockPersister) Save(_ context.Context, idx *index.Index, st *store.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.sizes = append(m.sizes, idx.Size(), st.Size())
	return m.err
}

// --- Helpers ---

func newTestService(t *testing.T, enc domain.Encoder, p Persister) *Service {
	t.Helper()
	idx, err := index.New(enc.Dimension())
	if err != nil {
		t.Fatal(err)
	}
	svc, err := New(idx, store.New(), enc, p, Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func rev(model, text string, ps ...shoe.Playstyle) review.Review {
	return review.Review{ShoeModel: model, Source: shoe.SourceForum, Text: text, Playstyle: ps}
}

func mustAdd(t *testing.T, svc *Service, reviews ...review.Review) AddResult {
	t.Helper()
	res, err := svc.AddReviews(context.Background(), reviews)
	if err != nil {
		t.Fatalf("AddReviews: %v", err)
	}
	return res
}

// shoeModel reads the shoe model of a result's document.
func shoeModel(r *result.Result) string {
	doc := r.Document()
	return doc.Meta().ShoeModel
}

// --- New ---

func TestNew_RejectsMismatchedState(t *testing.T) {
	enc := newAxisEncoder("a", "b")
	wrongDim, _ := index.New(3)
	if _, err := New(wrongDim, store.New(), enc, nil, Config{}, zap.NewNop()); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	idx, _ := index.New(2)
	_ = idx.Insert([][]float32{{1, 0}})
	if _, err := New(idx, store.New(), enc, nil, Config{}, zap.NewNop()); err == nil {
		t.Error("expected error for size mismatch")
	}

	empty, _ := index.New(2)
	if _, err := New(empty, store.New(), enc, nil, Config{CatalogMode: "bogus"}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown catalog mode")
	}

	cfg := Config{QueryEncoder: newAxisEncoder("a", "b", "c")}
	if _, err := New(empty, store.New(), enc, nil, cfg, zap.NewNop()); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for query encoder, got %v", err)
	}
}

func TestSimilaritySearch_UsesQueryEncoder(t *testing.T) {
	docEnc := newAxisEncoder("x", "y")
	queryEnc := newAxisEncoder("x", "y")
	idx, _ := index.New(2)
	svc, err := New(idx, store.New(), docEnc, nil, Config{QueryEncoder: queryEnc}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mustAdd(t, svc, rev("A", "x"))

	if _, err := svc.SimilaritySearch(context.Background(), "x", 1, filter.Expression{}); err != nil {
		t.Fatal(err)
	}
	if docEnc.calls != 1 || queryEnc.calls != 1 {
		t.Errorf("document encoder calls = %d, query encoder calls = %d", docEnc.calls, queryEnc.calls)
	}
}

// --- AddReviews ---

func TestAddReviews_AssignsConsecutivePositions(t *testing.T) {
	p := &mockPersister{}
	svc := newTestService(t, newAxisEncoder("traction", "cushion", "other"), p)

	first := mustAdd(t, svc, rev("Nike LeBron 21", "great traction"), rev("Nike KD 16", "soft cushion"))
	second := mustAdd(t, svc, rev("Puma MB.03", "fun colorway"))

	if first.FirstPosition != 0 || first.Added != 2 {
		t.Errorf("first batch = %+v", first)
	}
	if second.FirstPosition != 2 || second.Added != 1 {
		t.Errorf("second batch = %+v", second)
	}
	if !second.Persisted || p.saves != 2 {
		t.Errorf("expected a save per batch, saves=%d persisted=%v", p.saves, second.Persisted)
	}

	st := svc.Stats()
	if st.DocumentCount != 3 || st.IndexSize != 3 || st.EmbeddingDimension != 3 {
		t.Errorf("stats = %+v", st)
	}
	doc, err := svc.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Meta().ShoeModel != "Puma MB.03" || doc.ID() != second.IDs[0] {
		t.Errorf("position 2 = %s/%s", doc.Meta().ShoeModel, doc.ID())
	}
}

func TestAddReviews_SaveSeesConsistentPair(t *testing.T) {
	p := &mockPersister{}
	svc := newTestService(t, newAxisEncoder("x", "y"), p)
	mustAdd(t, svc, rev("A", "x"), rev("B", "y"))

	if len(p.sizes) != 2 || p.sizes[0] != p.sizes[1] {
		t.Errorf("persister saw index/store sizes %v", p.sizes)
	}
}

func TestAddReviews_EmptyBatch(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	svc := newTestService(t, enc, nil)
	res, err := svc.AddReviews(context.Background(), nil)
	if err != nil || res.Added != 0 {
		t.Fatalf("empty batch = %+v, %v", res, err)
	}
	if enc.calls != 0 {
		t.Error("encoder must not be called for an empty batch")
	}
}

func TestAddReviews_EncodingFailureLeavesStateUntouched(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	p := &mockPersister{}
	svc := newTestService(t, enc, p)
	mustAdd(t, svc, rev("A", "x"))

	enc.err = errors.New("provider down")
	_, err := svc.AddReviews(context.Background(), []review.Review{rev("B", "y")})
	if !errors.Is(err, domain.ErrEncodingFailure) {
		t.Fatalf("expected ErrEncodingFailure, got %v", err)
	}
	if s := svc.Stats(); s.DocumentCount != 1 || s.IndexSize != 1 {
		t.Errorf("state advanced after failure: %+v", s)
	}
	if p.saves != 1 {
		t.Errorf("failed batch must not save, saves=%d", p.saves)
	}
}

func TestAddReviews_DimensionMismatch(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	svc := newTestService(t, enc, nil)
	enc.wrongBy = 1

	_, err := svc.AddReviews(context.Background(), []review.Review{rev("A", "x")})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if svc.Size() != 0 {
		t.Errorf("size = %d, want 0", svc.Size())
	}
}

func TestAddReviews_InvalidReview(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	svc := newTestService(t, enc, nil)

	_, err := svc.AddReviews(context.Background(), []review.Review{rev("A", "x"), {Source: shoe.SourceForum, Text: "no model"}})
	if !errors.Is(err, domain.ErrInvalidReview) {
		t.Fatalf("expected ErrInvalidReview, got %v", err)
	}
	if enc.calls != 0 || svc.Size() != 0 {
		t.Error("invalid batch must be rejected before encoding")
	}
}

func TestAddReviews_PersistenceFailureIsNotFatal(t *testing.T) {
	p := &mockPersister{err: fmt.Errorf("%w: disk full", domain.ErrPersistenceUnavailable)}
	svc := newTestService(t, newAxisEncoder("x", "y"), p)

	res, err := svc.AddReviews(context.Background(), []review.Review{rev("A", "x")})
	if err != nil {
		t.Fatalf("save failure must not fail ingestion: %v", err)
	}
	if res.Persisted {
		t.Error("expected Persisted=false")
	}
	if svc.Size() != 1 {
		t.Errorf("in-memory state must keep the batch, size=%d", svc.Size())
	}
}

func TestAddReviews_DefaultsTimestamp(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("x", "y"), nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	mustAdd(t, svc, rev("A", "x"))
	doc, _ := svc.Get(0)
	if !doc.Meta().Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", doc.Meta().Timestamp, fixed)
	}
}

// --- SimilaritySearch ---

func TestSimilaritySearch_RanksBySimilarity(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("traction", "cushion", "other"), nil)
	mustAdd(t, svc,
		rev("Nike KD 16", "soft cushion"),
		rev("Nike LeBron 21", "great traction"),
		rev("Puma MB.03", "fun colorway"),
	)

	results, err := svc.SimilaritySearch(context.Background(), "which has the best traction", 2, filter.Expression{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Position() != 1 || results[0].Score() != 1 {
		t.Errorf("top result = pos %d score %f", results[0].Position(), results[0].Score())
	}
	// remaining docs tie at 0: earlier position first
	if results[1].Position() != 0 {
		t.Errorf("tie break: second result = pos %d, want 0", results[1].Position())
	}
}

func TestSimilaritySearch_Bounds(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("x", "y"), nil)

	res, err := svc.SimilaritySearch(context.Background(), "x", 5, filter.Expression{})
	if err != nil || len(res) != 0 {
		t.Fatalf("empty store: %v, %v", res, err)
	}

	mustAdd(t, svc, rev("A", "x"), rev("B", "y"))

	tests := []struct {
		name  string
		query string
		k     int
		want  int
	}{
		{"k larger than store", "x", 10, 2},
		{"k zero", "x", 0, 0},
		{"k negative", "x", -1, 0},
		{"blank query", "   ", 5, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.SimilaritySearch(context.Background(), tc.query, tc.k, filter.Expression{})
			if err != nil {
				t.Fatal(err)
			}
			if len(res) != tc.want {
				t.Errorf("got %d results, want %d", len(res), tc.want)
			}
		})
	}
}

func TestSimilaritySearch_FilterWithOverfetch(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("traction", "cushion", "other"), nil)
	mustAdd(t, svc,
		rev("A", "traction one", shoe.Center),
		rev("B", "traction two", shoe.Guard),
		rev("C", "cushion three", shoe.Guard),
		rev("D", "cushion four", shoe.Center),
	)
	guards := filter.Expression{}.With(document.FieldPlaystyle, filter.AnyOf("guard"))

	// k=1 fetches 2 candidates (A, B): A is dropped, B survives.
	res, err := svc.SimilaritySearch(context.Background(), "traction", 1, guards)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || shoeModel(&res[0]) != "B" {
		t.Fatalf("expected B, got %v", res)
	}

	// k=2 fetches all four; only the guards remain, in rank order.
	res, _ = svc.SimilaritySearch(context.Background(), "traction", 2, guards)
	if len(res) != 2 || res[0].Position() != 1 || res[1].Position() != 2 {
		t.Fatalf("expected positions [1 2], got %v", res)
	}
	for _, r := range res {
		doc := r.Document()
		if !filter.Matches(&doc, guards) {
			t.Errorf("result %d does not satisfy the filter", r.Position())
		}
	}
}

func TestSimilaritySearch_FilteredMayReturnFewer(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("x", "y"), nil)
	mustAdd(t, svc, rev("A", "x", shoe.Center), rev("B", "x", shoe.Center), rev("C", "y", shoe.Guard))
	guards := filter.Expression{}.With(document.FieldPlaystyle, filter.AnyOf("guard"))

	// k=1 overfetches 2 (A, B), neither is a guard.
	res, err := svc.SimilaritySearch(context.Background(), "x", 1, guards)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("expected no results, got %d", len(res))
	}
}

func TestSimilaritySearch_EncodingFailure(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	svc := newTestService(t, enc, nil)
	enc.err = errors.New("timeout")

	if _, err := svc.SimilaritySearch(context.Background(), "x", 3, filter.Expression{}); !errors.Is(err, domain.ErrEncodingFailure) {
		t.Fatalf("expected ErrEncodingFailure, got %v", err)
	}
}

// --- Retrieve ---

func mustRequest(t *testing.T, query string, k int, prefs request.Preferences) *request.Request {
	t.Helper()
	req, err := request.New(query, k, prefs)
	if err != nil {
		t.Fatal(err)
	}
	return &req
}

func TestRetrieve_StoreOnly(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("guards", "bigs", "other"), nil)
	mustAdd(t, svc, rev("Nike KD 16", "for guards", shoe.Guard), rev("Nike LeBron 21", "for bigs", shoe.Center))

	out := svc.Retrieve(context.Background(), mustRequest(t, "best shoes for guards", 5, request.Preferences{}))
	if out.Decision.Strategy != strategy.StoreOnly || out.Degraded {
		t.Fatalf("decision = %+v degraded=%v", out.Decision, out.Degraded)
	}
	if len(out.Results) != 2 || shoeModel(&out.Results[0]) != "Nike KD 16" {
		t.Errorf("unexpected results %v", out.Results)
	}
}

func TestRetrieve_AppliesPreferenceFilter(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("shoe", "other"), nil)
	mustAdd(t, svc, rev("A", "shoe", shoe.Center), rev("B", "shoe", shoe.Guard))
	prefs, _ := request.NewPreferences("guard", nil, "", nil)

	out := svc.Retrieve(context.Background(), mustRequest(t, "shoe for me", 5, prefs))
	if len(out.Results) != 1 || shoeModel(&out.Results[0]) != "B" {
		t.Errorf("expected only B, got %v", out.Results)
	}
}

func TestRetrieve_DegradesOnStoreFailure(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	svc := newTestService(t, enc, nil)
	mustAdd(t, svc, rev("A", "x"))
	enc.err = errors.New("provider down")

	out := svc.Retrieve(context.Background(), mustRequest(t, "best shoes for guards", 5, request.Preferences{}))
	if !out.Degraded || out.Decision.Strategy != strategy.LiveLookupOnly {
		t.Errorf("expected degraded live lookup, got %+v degraded=%v", out.Decision.Strategy, out.Degraded)
	}
	if out.Results == nil || len(out.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", out.Results)
	}
}

func TestRetrieve_LiveCatalogKnowsStoredModels(t *testing.T) {
	svc := newTestService(t, newAxisEncoder("x", "y"), nil)
	req := mustRequest(t, "Nike Kobe 6 review", 5, request.Preferences{})

	if got := svc.Retrieve(context.Background(), req).Decision.Strategy; got != strategy.Hybrid {
		t.Fatalf("unknown model should be hybrid, got %s", got)
	}
	mustAdd(t, svc, rev("Nike Kobe 6", "x"))
	if got := svc.Retrieve(context.Background(), req).Decision.Strategy; got != strategy.StoreOnly {
		t.Errorf("stored model should be known, got %s", got)
	}
	if svc.Stats().KnownModels != len(router.DefaultKnownModels)+1 {
		t.Errorf("known models = %d", svc.Stats().KnownModels)
	}
}

func TestRetrieve_StaticCatalog(t *testing.T) {
	enc := newAxisEncoder("x", "y")
	idx, _ := index.New(2)
	svc, err := New(idx, store.New(), enc, nil, Config{CatalogMode: router.CatalogStatic}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mustAdd(t, svc, rev("Nike Kobe 6", "x"))

	req := mustRequest(t, "Nike Kobe 6 review", 5, request.Preferences{})
	if got := svc.Retrieve(context.Background(), req).Decision.Strategy; got != strategy.Hybrid {
		t.Errorf("static catalog must ignore the store, got %s", got)
	}
}

// --- Concurrency ---

func TestService_ConcurrentAddAndSearch(t *testing.T) {
	enc, _ := hashing.New(32)
	p := &mockPersister{}
	svc := newTestService(t, enc, p)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 10 {
				_, err := svc.AddReviews(context.Background(), []review.Review{
					rev(fmt.Sprintf("Model %d-%d", w, i), "great traction and support"),
				})
				if err != nil {
					t.Errorf("add: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 10 {
				if _, err := svc.SimilaritySearch(context.Background(), "traction", 3, filter.Expression{}); err != nil {
					t.Errorf("search: %v", err)
				}
				_ = svc.Retrieve(context.Background(), mustRequest(t, "Model 1-1", 3, request.Preferences{}))
			}
		}()
	}
	wg.Wait()

	s := svc.Stats()
	if s.DocumentCount != 40 || s.IndexSize != 40 {
		t.Errorf("stats = %+v, want 40 documents", s)
	}
	for i := 0; i < len(p.sizes); i += 2 {
		if p.sizes[i] != p.sizes[i+1] {
			t.Fatalf("save %d saw index %d / store %d", i/2, p.sizes[i], p.sizes[i+1])
		}
	}
}
