package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/index"
	"github.com/kailas-cloud/courtside/internal/store"
)

// Artifact file names inside the data directory.
const (
	VectorsFile   = "index.vec"
	DocumentsFile = "documents.json"
)

// FileBackend persists snapshots as two files in a directory.
type FileBackend struct {
	dir string
}

var _ Persister = (*FileBackend)(nil)

// NewFileBackend creates the data directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", domain.ErrPersistenceUnavailable, err)
	}
	return &FileBackend{dir: dir}, nil
}

// Ping checks that the data directory is still reachable.
func (b *FileBackend) Ping(_ context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrPersistenceUnavailable, b.dir)
	}
	return nil
}

// Load reads both artifacts. Neither present is ErrNoState; only one present is corruption.
func (b *FileBackend) Load(_ context.Context) (*index.Index, *store.Store, error) {
	vectorData, vErr := os.ReadFile(b.path(VectorsFile))
	documentData, dErr := os.ReadFile(b.path(DocumentsFile))

	vMissing := errors.Is(vErr, fs.ErrNotExist)
	dMissing := errors.Is(dErr, fs.ErrNotExist)
	switch {
	case vMissing && dMissing:
		return nil, nil, ErrNoState
	case vErr != nil:
		return nil, nil, fmt.Errorf("%w: read %s: %w", domain.ErrPersistenceUnavailable, VectorsFile, vErr)
	case dErr != nil:
		return nil, nil, fmt.Errorf("%w: read %s: %w", domain.ErrPersistenceUnavailable, DocumentsFile, dErr)
	}

	return assemble(vectorData, documentData)
}

// Save overwrites both artifacts. Each file is replaced atomically via rename.
func (b *FileBackend) Save(_ context.Context, idx *index.Index, st *store.Store) error {
	vectorData, documentData, err := encode(idx, st)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}

	vTmp, err := b.writeTemp(VectorsFile, vectorData)
	if err != nil {
		return err
	}
	dTmp, err := b.writeTemp(DocumentsFile, documentData)
	if err != nil {
		_ = os.Remove(vTmp)
		return err
	}

	if err := os.Rename(vTmp, b.path(VectorsFile)); err != nil {
		_ = os.Remove(vTmp)
		_ = os.Remove(dTmp)
		return fmt.Errorf("%w: rename %s: %w", domain.ErrPersistenceUnavailable, VectorsFile, err)
	}
	if err := os.Rename(dTmp, b.path(DocumentsFile)); err != nil {
		_ = os.Remove(dTmp)
		return fmt.Errorf("%w: rename %s: %w", domain.ErrPersistenceUnavailable, DocumentsFile, err)
	}
	return nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name)
}

func (b *FileBackend) writeTemp(name string, data []byte) (string, error) {
	f, err := os.CreateTemp(b.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp %s: %w", domain.ErrPersistenceUnavailable, name, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: write %s: %w", domain.ErrPersistenceUnavailable, name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: sync %s: %w", domain.ErrPersistenceUnavailable, name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: close %s: %w", domain.ErrPersistenceUnavailable, name, err)
	}
	return tmp, nil
}
