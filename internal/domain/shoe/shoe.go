// Package shoe holds the closed vocabularies used to describe basketball shoes.
package shoe

import (
	"fmt"
	"strings"
)

// Source identifies where a review came from.
type Source string

// Review sources.
const (
	// SourceVideo is a web video review.
	SourceVideo Source = "youtube"
	// SourceForum is a discussion forum thread.
	SourceForum Source = "reddit"
	// SourceReviewSite is a dedicated review site.
	SourceReviewSite Source = "runrepeat"
	// SourceWebSearch is a live web search result.
	SourceWebSearch Source = "web_search"
)

// IsValid checks if the source is one of the supported values.
func (s Source) IsValid() bool {
	return s == SourceVideo || s == SourceForum || s == SourceReviewSite || s == SourceWebSearch
}

// Playstyle is a player role a shoe suits.
type Playstyle string

// Playstyles.
const (
	Guard     Playstyle = "guard"
	Forward   Playstyle = "forward"
	Center    Playstyle = "center"
	AllAround Playstyle = "all_around"
)

// IsValid checks if the playstyle is one of the supported values.
func (p Playstyle) IsValid() bool {
	return p == Guard || p == Forward || p == Center || p == AllAround
}

// ParsePlaystyle parses a playstyle case-insensitively. "all-around" is accepted as an alias.
func ParsePlaystyle(s string) (Playstyle, error) {
	p := Playstyle(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown playstyle %q", s)
	}
	return p, nil
}

// WeightClass is the shoe's weight bracket.
type WeightClass string

// Weight classes.
const (
	Light  WeightClass = "light"
	Medium WeightClass = "medium"
	Heavy  WeightClass = "heavy"
)

// IsValid checks if the weight class is one of the supported values.
func (w WeightClass) IsValid() bool {
	return w == Light || w == Medium || w == Heavy
}

// PriceRange is a retail price span in dollars.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// NewPriceRange validates and creates a PriceRange.
func NewPriceRange(low, high float64) (PriceRange, error) {
	if low < 0 || high < 0 {
		return PriceRange{}, fmt.Errorf("price range must be non-negative, got [%g, %g]", low, high)
	}
	if low > high {
		return PriceRange{}, fmt.Errorf("price range low %g exceeds high %g", low, high)
	}
	return PriceRange{Low: low, High: high}, nil
}

// MinScore and MaxScore bound review scores.
const (
	MinScore = 0.0
	MaxScore = 10.0
)
