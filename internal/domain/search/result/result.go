package result

import "github.com/kailas-cloud/courtside/internal/domain/document"

// Result is a single ranked search hit.
type Result struct {
	position int
	score    float64
	doc      document.Document
}

// New creates a search result.
func New(position int, score float64, doc document.Document) Result {
	return Result{position: position, score: score, doc: doc}
}

// Position returns the document's ordinal position in the store.
func (r *Result) Position() int { return r.position }

// Score returns the inner-product similarity (higher is more similar).
func (r *Result) Score() float64 { return r.score }

// Document returns the matched document.
func (r *Result) Document() document.Document { return r.doc }

// ID returns the matched document identifier.
func (r *Result) ID() string { return r.doc.ID() }
