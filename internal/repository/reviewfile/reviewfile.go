// Package reviewfile reads review exports from disk for migration into the index.
package reviewfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/kailas-cloud/courtside/internal/domain/review"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
)

// Format names a supported input layout.
type Format string

// Input formats.
const (
	// FormatReviews is an array of reviews (or {"reviews": [...]}) in the ingest API shape.
	FormatReviews Format = "reviews"
	// FormatCatalog is a shoe catalog export: name, brand, price, features, pros and cons.
	FormatCatalog Format = "catalog"
	// FormatScrape is a scraper dump keyed by source: youtube, reddit, runrepeat.
	FormatScrape Format = "scrape"
)

// Catalog price ranges are estimated around the listed price.
const (
	priceLowFactor  = 0.8
	priceHighFactor = 1.2
)

// Skipped is an input entry that could not be turned into a review.
type Skipped struct {
	Entry string
	Err   error
}

// Batch is the outcome of reading one file.
type Batch struct {
	Reviews []review.Review
	Skipped []Skipped
}

// ParseFormat validates a format name. Empty means FormatReviews.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatReviews, nil
	case FormatReviews, FormatCatalog, FormatScrape:
		return f, nil
	default:
		return "", fmt.Errorf("unknown review file format %q", s)
	}
}

// Load reads and converts the file at path.
func Load(path string, format Format) (Batch, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Batch{}, fmt.Errorf("open review file: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := Decode(f, format)
	if err != nil {
		return Batch{}, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// Decode converts a review export. Malformed JSON fails the whole read;
// entries that fail review validation are reported in Batch.Skipped.
func Decode(r io.Reader, format Format) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("read: %w", err)
	}

	switch format {
	case FormatReviews, "":
		return decodeReviews(data)
	case FormatCatalog:
		return decodeCatalog(data)
	case FormatScrape:
		return decodeScrape(data)
	default:
		return Batch{}, fmt.Errorf("unknown review file format %q", format)
	}
}

func decodeReviews(data []byte) (Batch, error) {
	var inputs []review.Input
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Reviews []review.Input `json:"reviews"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return Batch{}, fmt.Errorf("decode reviews: %w", err)
		}
		inputs = wrapped.Reviews
	} else if err := json.Unmarshal(data, &inputs); err != nil {
		return Batch{}, fmt.Errorf("decode reviews: %w", err)
	}

	var b Batch
	for i := range inputs {
		rv, err := inputs[i].Review()
		if err != nil {
			b.skip(fmt.Sprintf("reviews[%d]", i), err)
			continue
		}
		b.Reviews = append(b.Reviews, rv)
	}
	return b, nil
}

func decodeCatalog(data []byte) (Batch, error) {
	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return Batch{}, fmt.Errorf("decode catalog: %w", err)
	}

	var b Batch
	for i := range entries {
		b.add(fmt.Sprintf("catalog[%d]", i), catalogReview(&entries[i]))
	}
	return b, nil
}

func decodeScrape(data []byte) (Batch, error) {
	var dump scrapeDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return Batch{}, fmt.Errorf("decode scrape dump: %w", err)
	}

	var b Batch
	for i, v := range dump.YouTube {
		b.add(fmt.Sprintf("youtube[%d]", i), review.Review{
			ShoeModel:   v.Title,
			Source:      shoe.SourceVideo,
			Title:       v.Title,
			Text:        v.Transcript,
			Playstyle:   []shoe.Playstyle{shoe.AllAround},
			WeightClass: shoe.Medium,
			URL:         lo.Ternary(v.VideoID != "", "https://youtube.com/watch?v="+v.VideoID, ""),
		})
	}
	for i, p := range dump.Reddit {
		b.add(fmt.Sprintf("reddit[%d]", i), review.Review{
			ShoeModel:   p.Title,
			Source:      shoe.SourceForum,
			Title:       p.Title,
			Text:        p.Text,
			Pros:        p.ShoeModels,
			Playstyle:   []shoe.Playstyle{shoe.AllAround},
			WeightClass: shoe.Medium,
			Features:    p.ShoeModels,
			URL:         p.Metadata.URL,
		})
	}
	for i, l := range dump.RunRepeat {
		specs := lo.Keys(l.Specs)
		slices.Sort(specs)
		b.add(fmt.Sprintf("runrepeat[%d]", i), review.Review{
			ShoeModel:   l.ShoeModel,
			Source:      shoe.SourceReviewSite,
			Title:       "RunRepeat Review: " + l.ShoeModel,
			Pros:        l.Pros,
			Cons:        l.Cons,
			Playstyle:   []shoe.Playstyle{shoe.AllAround},
			WeightClass: shoe.Medium,
			Features:    specs,
		})
	}
	return b, nil
}

// catalogReview infers playstyle, weight class and price range from the catalog's features.
func catalogReview(e *catalogEntry) review.Review {
	name := e.fullName()
	text := lo.CoalesceOrEmpty(e.Description, e.Review, "Review for "+name)
	features := []string(e.Features)
	blob := strings.ToLower(strings.Join(features, " "))

	r := review.Review{
		ShoeModel:   name,
		Source:      shoe.SourceReviewSite,
		Title:       "Review of " + name,
		Text:        text,
		Pros:        e.Pros,
		Cons:        e.Cons,
		Score:       lo.CoalesceOrEmpty(e.Rating.ptr(), e.Score.ptr()),
		Playstyle:   inferPlaystyle(blob),
		WeightClass: inferWeightClass(blob),
		Features:    features,
		URL:         e.URL,
	}
	if p := e.Price.ptr(); p != nil {
		r.PriceRange = &shoe.PriceRange{Low: *p * priceLowFactor, High: *p * priceHighFactor}
	}
	return r
}

func inferPlaystyle(features string) []shoe.Playstyle {
	var out []shoe.Playstyle
	if containsAny(features, "guard", "quick", "lightweight") {
		out = append(out, shoe.Guard)
	}
	if containsAny(features, "forward", "versatile", "all-around") {
		out = append(out, shoe.Forward)
	}
	if containsAny(features, "center", "heavy", "cushioning") {
		out = append(out, shoe.Center)
	}
	if len(out) == 0 {
		return []shoe.Playstyle{shoe.AllAround}
	}
	return out
}

func inferWeightClass(features string) shoe.WeightClass {
	switch {
	case containsAny(features, "lightweight", "minimal"):
		return shoe.Light
	case containsAny(features, "heavy", "maximum"):
		return shoe.Heavy
	default:
		return shoe.Medium
	}
}

func containsAny(s string, words ...string) bool {
	return lo.SomeBy(words, func(w string) bool { return strings.Contains(s, w) })
}

// add validates r and records it as a review or a skip.
func (b *Batch) add(entry string, r review.Review) {
	if err := r.Validate(); err != nil {
		b.skip(entry, err)
		return
	}
	b.Reviews = append(b.Reviews, r)
}

func (b *Batch) skip(entry string, err error) {
	b.Skipped = append(b.Skipped, Skipped{Entry: entry, Err: err})
}
