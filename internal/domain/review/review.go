// Package review models raw shoe reviews and their transformation into documents.
package review

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
)

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Review is a structured review produced by a scraper or a migration.
type Review struct {
	ShoeModel     string
	Source        shoe.Source
	Title         string
	Text          string
	Pros          []string
	Cons          []string
	Score         *float64
	Playstyle     []shoe.Playstyle
	WeightClass   shoe.WeightClass
	PriceRange    *shoe.PriceRange
	Features      []string
	URL           string
	Timestamp     time.Time
	FootType      string
	InjurySupport []string
}

// Validate checks that the review can be turned into a document.
// All failures wrap domain.ErrInvalidReview.
func (r *Review) Validate() error {
	if strings.TrimSpace(r.ShoeModel) == "" {
		return fmt.Errorf("%w: shoe_model is required", domain.ErrInvalidReview)
	}
	if !r.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidReview, r.Source)
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: title or text is required", domain.ErrInvalidReview)
	}
	if r.Score != nil && (*r.Score < shoe.MinScore || *r.Score > shoe.MaxScore) {
		return fmt.Errorf("%w: score %g outside [%g, %g]",
			domain.ErrInvalidReview, *r.Score, shoe.MinScore, shoe.MaxScore)
	}
	for _, p := range r.Playstyle {
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown playstyle %q", domain.ErrInvalidReview, p)
		}
	}
	if r.WeightClass != "" && !r.WeightClass.IsValid() {
		return fmt.Errorf("%w: unknown weight class %q", domain.ErrInvalidReview, r.WeightClass)
	}
	if r.PriceRange != nil {
		if _, err := shoe.NewPriceRange(r.PriceRange.Low, r.PriceRange.High); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidReview, err)
		}
	}
	return nil
}

// ComposeText flattens title, body, pros and cons into a single searchable string.
func (r *Review) ComposeText() string {
	parts := make([]string, 0, 4)
	if t := strings.TrimSpace(r.Title); t != "" {
		parts = append(parts, t)
	}
	if t := strings.TrimSpace(r.Text); t != "" {
		parts = append(parts, t)
	}
	if len(r.Pros) > 0 {
		parts = append(parts, "Pros: "+strings.Join(r.Pros, ", "))
	}
	if len(r.Cons) > 0 {
		parts = append(parts, "Cons: "+strings.Join(r.Cons, ", "))
	}
	return strings.Join(parts, " ")
}

// NewID builds a unique document id of the form <source>_<model-slug>_<uuid>.
func (r *Review) NewID() string {
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(r.ShoeModel), "-"), "-")
	return fmt.Sprintf("%s_%s_%s", r.Source, slug, uuid.NewString())
}

// ToDocument validates the review and transforms it into a Document with the given id.
// A zero Timestamp is replaced with ingestedAt.
func (r *Review) ToDocument(id string, ingestedAt time.Time) (document.Document, error) {
	if err := r.Validate(); err != nil {
		return document.Document{}, err
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = ingestedAt
	}

	doc, err := document.New(id, r.ComposeText(), document.Metadata{
		ShoeModel:     strings.TrimSpace(r.ShoeModel),
		Source:        r.Source,
		Playstyle:     r.Playstyle,
		WeightClass:   r.WeightClass,
		PriceRange:    r.PriceRange,
		Features:      r.Features,
		Score:         r.Score,
		URL:           r.URL,
		Timestamp:     ts.UTC(),
		FootType:      strings.ToLower(strings.TrimSpace(r.FootType)),
		InjurySupport: lowerAll(r.InjurySupport),
	})
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidReview, err)
	}
	return doc, nil
}

// lowerAll normalizes free-form tags so they compare equal to normalized preferences.
func lowerAll(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
