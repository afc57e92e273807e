package document

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/kailas-cloud/courtside/internal/domain/shoe"
)

// Field names a metadata field addressable by filters.
type Field string

// Metadata fields.
const (
	FieldShoeModel     Field = "shoe_model"
	FieldSource        Field = "source"
	FieldPlaystyle     Field = "playstyle"
	FieldWeightClass   Field = "weight_class"
	FieldPriceRange    Field = "price_range"
	FieldFeatures      Field = "features"
	FieldScore         Field = "score"
	FieldURL           Field = "url"
	FieldTimestamp     Field = "timestamp"
	FieldFootType      Field = "foot_type"
	FieldInjurySupport Field = "injury_support"
)

// Metadata is the closed set of structured fields carried by every document.
// Optional scalars use zero values ("" or nil) for "unset".
type Metadata struct {
	ShoeModel     string
	Source        shoe.Source
	Playstyle     []shoe.Playstyle
	WeightClass   shoe.WeightClass
	PriceRange    *shoe.PriceRange
	Features      []string
	Score         *float64
	URL           string
	Timestamp     time.Time
	FootType      string
	InjurySupport []string
}

// Scalar returns a single-valued field as a string. Unset optionals report false.
func (m *Metadata) Scalar(f Field) (string, bool) {
	switch f {
	case FieldShoeModel:
		return m.ShoeModel, m.ShoeModel != ""
	case FieldSource:
		return string(m.Source), m.Source != ""
	case FieldWeightClass:
		return string(m.WeightClass), m.WeightClass != ""
	case FieldURL:
		return m.URL, m.URL != ""
	case FieldFootType:
		return m.FootType, m.FootType != ""
	case FieldScore:
		if m.Score == nil {
			return "", false
		}
		return strconv.FormatFloat(*m.Score, 'f', -1, 64), true
	case FieldTimestamp:
		if m.Timestamp.IsZero() {
			return "", false
		}
		return m.Timestamp.UTC().Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// Set returns a field as a set of strings. Scalar fields are returned as a one-element set.
func (m *Metadata) Set(f Field) ([]string, bool) {
	switch f {
	case FieldPlaystyle:
		out := make([]string, len(m.Playstyle))
		for i, p := range m.Playstyle {
			out[i] = string(p)
		}
		return out, len(out) > 0
	case FieldFeatures:
		return m.Features, len(m.Features) > 0
	case FieldInjurySupport:
		return m.InjurySupport, len(m.InjurySupport) > 0
	default:
		v, ok := m.Scalar(f)
		if !ok {
			return nil, false
		}
		return []string{v}, true
	}
}

// Number returns a numeric field. A price range reports its low end.
func (m *Metadata) Number(f Field) (float64, bool) {
	switch f {
	case FieldScore:
		if m.Score == nil {
			return 0, false
		}
		return *m.Score, true
	case FieldPriceRange:
		if m.PriceRange == nil {
			return 0, false
		}
		return m.PriceRange.Low, true
	default:
		return 0, false
	}
}

func (m *Metadata) clone() Metadata {
	c := *m
	c.Playstyle = slices.Clone(m.Playstyle)
	c.Features = slices.Clone(m.Features)
	c.InjurySupport = slices.Clone(m.InjurySupport)
	if m.PriceRange != nil {
		pr := *m.PriceRange
		c.PriceRange = &pr
	}
	if m.Score != nil {
		s := *m.Score
		c.Score = &s
	}
	return c
}

// Document is a retrievable unit of review text plus metadata (immutable value object).
type Document struct {
	id       string
	text     string
	metadata Metadata
	vector   []float32
}

// New validates and creates a Document.
func New(id, text string, md Metadata) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if text == "" {
		return Document{}, fmt.Errorf("document text is required")
	}
	if md.ShoeModel == "" {
		return Document{}, fmt.Errorf("shoe_model is required")
	}
	if !md.Source.IsValid() {
		return Document{}, fmt.Errorf("unknown source %q", md.Source)
	}
	return Document{id: id, text: text, metadata: md.clone()}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, text string, md Metadata, vector []float32) Document {
	return Document{id: id, text: text, metadata: md, vector: vector}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Text returns the document text.
func (d *Document) Text() string { return d.text }

// Metadata returns a copy of the structured metadata.
func (d *Document) Metadata() Metadata { return d.metadata.clone() }

// Meta returns a pointer to the metadata for read-only field lookups without copying.
func (d *Document) Meta() *Metadata { return &d.metadata }

// Vector returns the embedding vector, if attached.
func (d *Document) Vector() []float32 { return d.vector }

// WithVector returns a copy with the given vector attached.
func (d *Document) WithVector(v []float32) Document {
	return Document{id: d.id, text: d.text, metadata: d.metadata, vector: v}
}
