// Package store is the append-only document sequence parallel to the vector index.
package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/document"
)

// Store holds documents addressed by insertion position. Not safe for concurrent mutation.
type Store struct {
	docs []document.Document
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// FromDocuments hydrates a store from persisted documents in position order.
func FromDocuments(docs []document.Document) *Store {
	return &Store{docs: slices.Clone(docs)}
}

// Append assigns positions Size()..Size()+len(docs)-1 to docs, in order.
func (s *Store) Append(docs []document.Document) {
	s.docs = append(s.docs, docs...)
}

// Get returns the document at pos.
func (s *Store) Get(pos int) (document.Document, error) {
	if pos < 0 || pos >= len(s.docs) {
		return document.Document{}, fmt.Errorf("document %d of %d: %w", pos, len(s.docs), domain.ErrOutOfRange)
	}
	return s.docs[pos], nil
}

// Size returns the number of stored documents.
func (s *Store) Size() int { return len(s.docs) }

// All returns a snapshot of every document in position order.
func (s *Store) All() []document.Document {
	return slices.Clone(s.docs)
}

// ShoeModels returns the distinct shoe model names in first-seen order.
// Names differing only by case are reported once.
func (s *Store) ShoeModels() []string {
	models := lo.Map(s.docs, func(d document.Document, _ int) string {
		return d.Meta().ShoeModel
	})
	return lo.UniqBy(models, strings.ToLower)
}
