package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
)

// Input is the JSON form of a review accepted by the ingest API and the migration loader.
// price_range is a [low, high] pair.
type Input struct {
	ShoeModel     string     `json:"shoe_model"`
	Source        string     `json:"source"`
	Title         string     `json:"title"`
	Text          string     `json:"text"`
	Pros          []string   `json:"pros,omitempty"`
	Cons          []string   `json:"cons,omitempty"`
	Score         *float64   `json:"score,omitempty"`
	Playstyle     []string   `json:"playstyle,omitempty"`
	WeightClass   string     `json:"weight_class,omitempty"`
	PriceRange    []float64  `json:"price_range,omitempty"`
	Features      []string   `json:"features,omitempty"`
	URL           string     `json:"url,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	FootType      string     `json:"foot_type,omitempty"`
	InjurySupport []string   `json:"injury_support,omitempty"`
}

// Review parses enumerations and validates the result.
// All failures wrap domain.ErrInvalidReview.
func (in *Input) Review() (Review, error) {
	r := Review{
		ShoeModel:     in.ShoeModel,
		Source:        shoe.Source(strings.ToLower(strings.TrimSpace(in.Source))),
		Title:         in.Title,
		Text:          in.Text,
		Pros:          in.Pros,
		Cons:          in.Cons,
		Score:         in.Score,
		WeightClass:   shoe.WeightClass(strings.ToLower(strings.TrimSpace(in.WeightClass))),
		Features:      in.Features,
		URL:           in.URL,
		FootType:      in.FootType,
		InjurySupport: in.InjurySupport,
	}
	if in.Timestamp != nil {
		r.Timestamp = *in.Timestamp
	}

	for _, p := range in.Playstyle {
		ps, err := shoe.ParsePlaystyle(p)
		if err != nil {
			return Review{}, fmt.Errorf("%w: %w", domain.ErrInvalidReview, err)
		}
		r.Playstyle = append(r.Playstyle, ps)
	}

	switch len(in.PriceRange) {
	case 0:
	case 2:
		pr, err := shoe.NewPriceRange(in.PriceRange[0], in.PriceRange[1])
		if err != nil {
			return Review{}, fmt.Errorf("%w: %w", domain.ErrInvalidReview, err)
		}
		r.PriceRange = &pr
	default:
		return Review{}, fmt.Errorf("%w: price_range must be [low, high], got %d values",
			domain.ErrInvalidReview, len(in.PriceRange))
	}

	if err := r.Validate(); err != nil {
		return Review{}, err
	}
	return r, nil
}
