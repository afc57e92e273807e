package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/db"
	"github.com/kailas-cloud/courtside/internal/domain"
	domdoc "github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/store"
)

func testPair(t *testing.T) (*index.Index, *store.Store) {
	t.Helper()
	idx, err := index.New(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert([][]float32{{1, 0, 0}, {0, 0.6, 0.8}}); err != nil {
		t.Fatal(err)
	}
	score := 8.5
	a, err := domdoc.New("youtube_lebron_1", "Great traction on dusty courts", domdoc.Metadata{
		ShoeModel:  "Nike LeBron 21",
		Source:     shoe.SourceVideo,
		Playstyle:  []shoe.Playstyle{shoe.Forward},
		PriceRange: &shoe.PriceRange{Low: 150, High: 200},
		Features:   []string{"traction", "cushioning"},
		Score:      &score,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := domdoc.New("reddit_curry_1", "Low to the ground, great court feel", domdoc.Metadata{
		ShoeModel: "Under Armour Curry 11",
		Source:    shoe.SourceForum,
		FootType:  "wide",
		Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx, store.FromDocuments([]domdoc.Document{a, b})
}

func assertSamePair(t *testing.T, wantIdx *index.Index, wantSt *store.Store, gotIdx *index.Index, gotSt *store.Store) {
	t.Helper()
	if gotIdx.Dimension() != wantIdx.Dimension() || gotIdx.Size() != wantIdx.Size() {
		t.Fatalf("index = %dx%d, want %dx%d", gotIdx.Size(), gotIdx.Dimension(), wantIdx.Size(), wantIdx.Dimension())
	}
	for i, f := range wantIdx.Raw() {
		if gotIdx.Raw()[i] != f {
			t.Fatalf("raw[%d] = %v, want %v", i, gotIdx.Raw()[i], f)
		}
	}
	if gotSt.Size() != wantSt.Size() {
		t.Fatalf("store size = %d, want %d", gotSt.Size(), wantSt.Size())
	}
	for pos := range wantSt.Size() {
		want, _ := wantSt.Get(pos)
		got, _ := gotSt.Get(pos)
		if got.ID() != want.ID() || got.Text() != want.Text() {
			t.Errorf("doc %d = %q/%q, want %q/%q", pos, got.ID(), got.Text(), want.ID(), want.Text())
		}
		wm, gm := want.Meta(), got.Meta()
		if gm.ShoeModel != wm.ShoeModel || gm.Source != wm.Source || gm.FootType != wm.FootType {
			t.Errorf("doc %d metadata = %+v, want %+v", pos, gm, wm)
		}
		if !gm.Timestamp.Equal(wm.Timestamp) {
			t.Errorf("doc %d timestamp = %v, want %v", pos, gm.Timestamp, wm.Timestamp)
		}
		if (gm.Score == nil) != (wm.Score == nil) || (gm.Score != nil && *gm.Score != *wm.Score) {
			t.Errorf("doc %d score mismatch", pos)
		}
		if (gm.PriceRange == nil) != (wm.PriceRange == nil) || (gm.PriceRange != nil && *gm.PriceRange != *wm.PriceRange) {
			t.Errorf("doc %d price range mismatch", pos)
		}
	}
}

// --- file backend ---

func TestFileBackend_RoundTrip(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	idx, st := testPair(t)

	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	gotIdx, gotSt, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamePair(t, idx, st, gotIdx, gotSt)
}

func TestFileBackend_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir)
	idx, st := testPair(t)
	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatal(err)
	}
	empty, _ := index.New(3)
	if err := b.Save(context.Background(), empty, store.New()); err != nil {
		t.Fatal(err)
	}

	gotIdx, gotSt, err := b.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if gotIdx.Size() != 0 || gotSt.Size() != 0 {
		t.Errorf("expected empty pair after overwrite, got %d/%d", gotIdx.Size(), gotSt.Size())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 files (no temp leftovers), got %d", len(entries))
	}
}

func TestFileBackend_NoState(t *testing.T) {
	b, _ := NewFileBackend(t.TempDir())
	_, _, err := b.Load(context.Background())
	if !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestFileBackend_MissingOneArtifact(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir)
	idx, st := testPair(t)
	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, DocumentsFile)); err != nil {
		t.Fatal(err)
	}

	_, _, err := b.Load(context.Background())
	if !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestFileBackend_CorruptArtifacts(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"truncated vectors", VectorsFile, []byte("CSVX")},
		{"bad magic", VectorsFile, make([]byte, 32)},
		{"garbage documents", DocumentsFile, []byte("{not json")},
		{"unknown document field", DocumentsFile, []byte(`[{"id":"a","text":"t","metadata":{},"extra":1}]`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			b, _ := NewFileBackend(dir)
			idx, st := testPair(t)
			if err := b.Save(context.Background(), idx, st); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, tc.file), tc.data, 0o600); err != nil {
				t.Fatal(err)
			}
			_, _, err := b.Load(context.Background())
			if !errors.Is(err, domain.ErrPersistenceUnavailable) {
				t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
			}
		})
	}
}

// firstOf returns the pair cut back to its first document.
func firstOf(t *testing.T, idx *index.Index, st *store.Store) (*index.Index, *store.Store) {
	t.Helper()
	one, err := index.FromRaw(idx.Dimension(), slices.Clone(idx.Raw()[:idx.Dimension()]))
	if err != nil {
		t.Fatal(err)
	}
	return one, store.FromDocuments(st.All()[:1])
}

func TestFileBackend_DocumentsAheadOfVectors(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir)
	idx, st := testPair(t)
	oneIdx, oneSt := firstOf(t, idx, st)
	if err := b.Save(context.Background(), oneIdx, oneSt); err != nil {
		t.Fatal(err)
	}
	docs, err := encodeDocuments(st.All())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocumentsFile), docs, 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err = b.Load(context.Background())
	if !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestFileBackend_InterruptedSave(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir)
	idx, st := testPair(t)
	oneIdx, oneSt := firstOf(t, idx, st)

	if err := b.Save(context.Background(), oneIdx, oneSt); err != nil {
		t.Fatal(err)
	}
	oldDocs, err := os.ReadFile(filepath.Join(dir, DocumentsFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatal(err)
	}
	// The vectors rename landed, the documents rename did not.
	if err := os.WriteFile(filepath.Join(dir, DocumentsFile), oldDocs, 0o600); err != nil {
		t.Fatal(err)
	}

	gotIdx, gotSt, err := b.Load(context.Background())
	if !errors.Is(err, ErrTrailingVectors) {
		t.Fatalf("expected ErrTrailingVectors, got %v", err)
	}
	assertSamePair(t, oneIdx, oneSt, gotIdx, gotSt)

	gotIdx, gotSt, err = LoadOrEmpty(context.Background(), b, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadOrEmpty: %v", err)
	}
	assertSamePair(t, oneIdx, oneSt, gotIdx, gotSt)

	// The recovered pair keeps accepting appends.
	if err := gotIdx.Insert([][]float32{{0, 1, 0}}); err != nil {
		t.Fatal(err)
	}
	if gotIdx.Size() != 2 {
		t.Errorf("size after insert = %d, want 2", gotIdx.Size())
	}
}

func TestLoadOrEmpty_OversizedHeader(t *testing.T) {
	dir := t.TempDir()
	header := make([]byte, vectorHeaderSize)
	copy(header[0:4], vectorMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], vectorVersion)
	binary.LittleEndian.PutUint32(header[8:12], 0x80000000)
	binary.LittleEndian.PutUint32(header[12:16], 0x80000000)
	if err := os.WriteFile(filepath.Join(dir, VectorsFile), header, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocumentsFile), []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, _ := NewFileBackend(dir)

	idx, st, err := LoadOrEmpty(context.Background(), b, 3, zap.NewNop())
	if !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if idx.Size() != 0 || st.Size() != 0 || idx.Dimension() != 3 {
		t.Errorf("expected empty 3-dim pair, got %dx%d / %d", idx.Size(), idx.Dimension(), st.Size())
	}
}

func TestDecodeVectors_SizeChecks(t *testing.T) {
	idx, _ := testPair(t)
	good := encodeVectors(idx)
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"odd body length", func(b []byte) []byte { return append(b, 0) }},
		{"count too high", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[12:16], 3); return b }},
		{"dimension not dividing body", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[8:12], 4); return b }},
		{"zero dimension", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[8:12], 0); return b }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeVectors(tc.mutate(slices.Clone(good))); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := decodeVectors(good); err != nil {
		t.Fatalf("valid data rejected: %v", err)
	}
}

func TestFileBackend_SaveRejectsInconsistentPair(t *testing.T) {
	b, _ := NewFileBackend(t.TempDir())
	idx, _ := testPair(t)
	if err := b.Save(context.Background(), idx, store.New()); err == nil {
		t.Fatal("expected error saving mismatched pair")
	}
}

func TestFileBackend_Ping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := b.Ping(context.Background()); !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestNewFileBackend_EmptyDir(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

// --- redis backend ---

type mockKV struct {
	data    map[string][]byte
	pingErr error
	getErr  error
	setErr  error
	sets    int
}

func newMockKV() *mockKV { return &mockKV{data: map[string][]byte{}} }

func (m *mockKV) Ping(_ context.Context) error { return m.pingErr }

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetMulti(_ context.Context, items []db.KVItem) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	for _, it := range items {
		m.data[it.Key] = it.Value
	}
	return nil
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	kv := newMockKV()
	b := NewRedisBackend(kv, "")
	idx, st := testPair(t)

	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if kv.sets != 1 {
		t.Errorf("expected one MSET, got %d", kv.sets)
	}
	if _, ok := kv.data["courtside:snapshot:index"]; !ok {
		t.Error("expected default-prefixed index key")
	}

	gotIdx, gotSt, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSamePair(t, idx, st, gotIdx, gotSt)
}

func TestRedisBackend_CustomPrefix(t *testing.T) {
	kv := newMockKV()
	b := NewRedisBackend(kv, "test:")
	idx, st := testPair(t)
	if err := b.Save(context.Background(), idx, st); err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.data["test:snapshot:documents"]; !ok {
		t.Errorf("expected prefixed documents key, have %v", kv.data)
	}
}

func TestRedisBackend_NoState(t *testing.T) {
	b := NewRedisBackend(newMockKV(), "")
	if _, _, err := b.Load(context.Background()); !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestRedisBackend_Errors(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("connection refused")
	b := NewRedisBackend(kv, "")
	if _, _, err := b.Load(context.Background()); !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Errorf("load: expected ErrPersistenceUnavailable, got %v", err)
	}

	kv.setErr = errors.New("READONLY")
	idx, st := testPair(t)
	if err := b.Save(context.Background(), idx, st); !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Errorf("save: expected ErrPersistenceUnavailable, got %v", err)
	}

	kv.pingErr = errors.New("down")
	if err := b.Ping(context.Background()); !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Errorf("ping: expected ErrPersistenceUnavailable, got %v", err)
	}
}

// --- LoadOrEmpty ---

type stubPersister struct {
	idx *index.Index
	st  *store.Store
	err error
}

func (s *stubPersister) Load(_ context.Context) (*index.Index, *store.Store, error) {
	return s.idx, s.st, s.err
}

func (s *stubPersister) Save(_ context.Context, _ *index.Index, _ *store.Store) error { return nil }

func TestLoadOrEmpty(t *testing.T) {
	idx, st := testPair(t)
	tests := []struct {
		name     string
		p        *stubPersister
		dim      int
		wantSize int
		wantErr  bool
	}{
		{"loaded", &stubPersister{idx: idx, st: st}, 3, 2, false},
		{"no state", &stubPersister{err: ErrNoState}, 3, 0, false},
		{"corrupt", &stubPersister{err: domain.ErrPersistenceUnavailable}, 3, 0, true},
		{"dimension mismatch", &stubPersister{idx: idx, st: st}, 8, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotIdx, gotSt, err := LoadOrEmpty(context.Background(), tc.p, tc.dim, zap.NewNop())
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if gotIdx == nil || gotSt == nil {
				t.Fatal("expected a usable pair")
			}
			if gotIdx.Dimension() != tc.dim {
				t.Errorf("dimension = %d, want %d", gotIdx.Dimension(), tc.dim)
			}
			if gotIdx.Size() != tc.wantSize || gotSt.Size() != tc.wantSize {
				t.Errorf("size = %d/%d, want %d", gotIdx.Size(), gotSt.Size(), tc.wantSize)
			}
		})
	}
}

func TestLoadOrEmpty_FromCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, VectorsFile), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocumentsFile), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, _ := NewFileBackend(dir)

	idx, st, err := LoadOrEmpty(context.Background(), b, 4, zap.NewNop())
	if !errors.Is(err, domain.ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if idx.Size() != 0 || st.Size() != 0 || idx.Dimension() != 4 {
		t.Errorf("expected empty 4-dim pair, got %dx%d / %d", idx.Size(), idx.Dimension(), st.Size())
	}
}
