// Package router decides how a query is answered: from the review store, a live lookup, or both.
package router

import (
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/request"
	"github.com/kailas-cloud/courtside/internal/domain/search/strategy"
)

// Default keyword lists and brands.
var (
	DefaultPriceKeywords    = []string{"$", "price", "cost", "cheap", "expensive", "budget", "sale"}
	DefaultTemporalKeywords = []string{"2024", "2025", "new", "latest", "recent", "release"}
	DefaultBrands           = []string{"Nike", "Adidas", "Jordan", "Under Armour", "Puma"}
)

// Decision reasons.
const (
	ReasonEmptyQuery   = "empty_query"
	ReasonPrice        = "price_keyword"
	ReasonTemporal     = "temporal_keyword"
	ReasonGeneral      = "no_model_mentioned"
	ReasonUnknownModel = "unknown_model"
	ReasonKnownModels  = "known_models"
)

// maxBrandTokens bounds how far past a brand name a model token is looked for.
const maxBrandTokens = 3

// Decision is the routing outcome for one query.
type Decision struct {
	Strategy strategy.Strategy
	Filter   filter.Expression
	Reason   string
	Mentions []string
	Unknown  []string
}

// Config is the immutable router configuration. Empty lists use the defaults.
type Config struct {
	PriceKeywords    []string
	TemporalKeywords []string
	Brands           []string
}

// Router is safe for concurrent use; it holds no mutable state.
type Router struct {
	priceKeywords    []string
	temporalKeywords []string
	brands           []string
	catalog          Catalog
	wordNumber       *regexp.Regexp
	alphanumeric     *regexp.Regexp
	tokenSplit       *regexp.Regexp
}

// wordNumberStopwords are words that precede numbers without naming a model ("top 5", "size 12").
var wordNumberStopwords = map[string]bool{
	"top": true, "under": true, "over": true, "below": true, "above": true, "size": true,
	"best": true, "about": true, "around": true, "for": true, "with": true, "than": true,
	"in": true, "at": true, "of": true, "to": true, "and": true, "or": true, "is": true,
}

// New creates a router.
func New(cfg Config, catalog Catalog) *Router {
	return &Router{
		priceKeywords:    lowerAll(lo.Ternary(len(cfg.PriceKeywords) > 0, cfg.PriceKeywords, DefaultPriceKeywords)),
		temporalKeywords: lowerAll(lo.Ternary(len(cfg.TemporalKeywords) > 0, cfg.TemporalKeywords, DefaultTemporalKeywords)),
		brands:           lowerAll(lo.Ternary(len(cfg.Brands) > 0, cfg.Brands, DefaultBrands)),
		catalog:          catalog,
		wordNumber:       regexp.MustCompile(`\b([a-z]{2,})\s+(\d+(?:\.\d+)?)\b`),
		alphanumeric:     regexp.MustCompile(`(?:^|[\s(])([a-z]+\.?\d+[a-z0-9]*)\b`),
		tokenSplit:       regexp.MustCompile(`[^a-z0-9.\-]+`),
	}
}

// Decide routes a query. The filter is derived from prefs regardless of strategy.
//
// Precedence: price keyword, then temporal keyword, then model mentions. Queries naming
// no model stay in the store; any mention missing from the catalog adds a live lookup.
func (r *Router) Decide(query string, prefs request.Preferences) Decision {
	d := Decision{Filter: r.Filter(prefs)}
	q := strings.ToLower(strings.TrimSpace(query))

	switch {
	case q == "":
		d.Strategy, d.Reason = strategy.StoreOnly, ReasonEmptyQuery
		return d
	case containsAny(q, r.priceKeywords):
		d.Strategy, d.Reason = strategy.Hybrid, ReasonPrice
		return d
	case containsAny(q, r.temporalKeywords):
		d.Strategy, d.Reason = strategy.Hybrid, ReasonTemporal
		return d
	}

	d.Mentions = r.ExtractModels(q)
	if len(d.Mentions) == 0 {
		d.Strategy, d.Reason = strategy.StoreOnly, ReasonGeneral
		return d
	}

	known := lowerAll(r.catalog.Models())
	d.Unknown = lo.Filter(d.Mentions, func(m string, _ int) bool { return !isKnown(m, known) })
	if len(d.Unknown) > 0 {
		d.Strategy, d.Reason = strategy.Hybrid, ReasonUnknownModel
		return d
	}
	d.Strategy, d.Reason = strategy.StoreOnly, ReasonKnownModels
	return d
}

// Filter builds the metadata filter for prefs. Empty prefs give an empty filter.
func (r *Router) Filter(prefs request.Preferences) filter.Expression {
	var x filter.Expression
	if prefs.Playstyle != "" {
		x = x.With(document.FieldPlaystyle, filter.AnyOf(string(prefs.Playstyle)))
	}
	if prefs.Budget != nil {
		x = x.With(document.FieldPriceRange, filter.LessThan(*prefs.Budget))
	}
	if prefs.FootType != "" {
		x = x.With(document.FieldFootType, filter.Exact(prefs.FootType))
	}
	if len(prefs.InjuryConcerns) > 0 {
		x = x.With(document.FieldInjurySupport, filter.AnyOf(prefs.InjuryConcerns...))
	}
	return x
}

// ExtractModels returns the distinct lowercased shoe-model mentions in text.
//
// Three patterns contribute: a brand followed by model words up to the first word with
// a digit ("nike lebron 21", or the bare brand when no such word follows), a word of at
// least two letters followed by a number ("lebron 21"), and alphanumeric model codes ("x9", "mb.03").
func (r *Router) ExtractModels(text string) []string {
	q := strings.ToLower(text)
	var out []string

	for _, brand := range r.brands {
		for _, rest := range brandFollowers(q, brand) {
			out = append(out, brandMention(brand, r.tokenSplit.Split(rest, -1)))
		}
	}

	for _, m := range r.wordNumber.FindAllStringSubmatch(q, -1) {
		if !wordNumberStopwords[m[1]] {
			out = append(out, m[1]+" "+m[2])
		}
	}

	for _, m := range r.alphanumeric.FindAllStringSubmatch(q, -1) {
		out = append(out, strings.TrimRight(m[1], "."))
	}

	return lo.Uniq(out)
}

// brandFollowers returns, for every whole-word occurrence of brand in q, the text after it.
func brandFollowers(q, brand string) []string {
	var out []string
	for from := 0; ; {
		i := strings.Index(q[from:], brand)
		if i < 0 {
			return out
		}
		start, end := from+i, from+i+len(brand)
		if isBoundary(q, start-1) && isBoundary(q, end) {
			out = append(out, q[end:])
		}
		from = end
	}
}

func brandMention(brand string, tokens []string) string {
	words := []string{brand}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if len(words) > maxBrandTokens {
			break
		}
		words = append(words, tok)
		if strings.ContainsAny(tok, "0123456789") {
			return strings.Join(words, " ")
		}
	}
	return brand
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// isKnown matches case-insensitively by substring in either direction.
func isKnown(mention string, known []string) bool {
	return slices.ContainsFunc(known, func(k string) bool {
		return strings.Contains(k, mention) || strings.Contains(mention, k)
	})
}

func containsAny(s string, keywords []string) bool {
	return slices.ContainsFunc(keywords, func(k string) bool { return k != "" && strings.Contains(s, k) })
}

func lowerAll(in []string) []string {
	return lo.Map(in, func(s string, _ int) string { return strings.ToLower(s) })
}

// KnownModels returns the current catalog.
func (r *Router) KnownModels() []string { return r.catalog.Models() }
