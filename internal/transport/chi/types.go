package chi

import (
	"time"

	"github.com/samber/lo"

	domdoc "github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/review"
	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/result"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
	retrievaluc "github.com/kailas-cloud/courtside/internal/usecase/retrieval"
	"github.com/kailas-cloud/courtside/internal/usecase/router"
)

// searchPreviewLength caps document text in GET /search responses.
const searchPreviewLength = 200

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	DocumentCount      int `json:"document_count"`
	IndexSize          int `json:"index_size"`
	EmbeddingDimension int `json:"embedding_dimension"`
	KnownModels        int `json:"known_models"`
}

// AddReviewsRequest is the batch form of POST /reviews.
type AddReviewsRequest struct {
	Reviews []review.Input `json:"reviews"`
}

// AddReviewsResponse is the body of a successful POST /reviews.
type AddReviewsResponse struct {
	Added         int      `json:"added"`
	FirstPosition int      `json:"first_position"`
	IDs           []string `json:"ids"`
	Persisted     bool     `json:"persisted"`
	Total         int      `json:"total"`
}

// QueryRequest is the body of POST /retrieve and POST /route.
type QueryRequest struct {
	Query          string   `json:"query"`
	Playstyle      string   `json:"playstyle,omitempty"`
	Budget         *float64 `json:"budget,omitempty"`
	FootType       string   `json:"foot_type,omitempty"`
	InjuryConcerns []string `json:"injury_concerns,omitempty"`
	K              *int     `json:"k,omitempty"`
}

// FilterEntry is the JSON form of one filter constraint.
type FilterEntry struct {
	Op     string   `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	Bound  *float64 `json:"bound,omitempty"`
}

// RouteResponse is the body of POST /route.
type RouteResponse struct {
	Strategy      string                 `json:"strategy"`
	Reason        string                 `json:"reason"`
	Mentions      []string               `json:"mentions"`
	UnknownModels []string               `json:"unknown_models"`
	Filter        map[string]FilterEntry `json:"filter"`
}

// RetrieveResponse is the body of POST /retrieve.
type RetrieveResponse struct {
	RouteResponse
	Documents []DocumentResponse `json:"documents"`
	Degraded  bool               `json:"degraded"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []DocumentResponse `json:"results"`
}

// MetadataResponse is the JSON form of document metadata.
type MetadataResponse struct {
	ShoeModel     string    `json:"shoe_model"`
	Source        string    `json:"source"`
	Playstyle     []string  `json:"playstyle,omitempty"`
	WeightClass   string    `json:"weight_class,omitempty"`
	PriceRange    []float64 `json:"price_range,omitempty"`
	Features      []string  `json:"features,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	URL           string    `json:"url,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	FootType      string    `json:"foot_type,omitempty"`
	InjurySupport []string  `json:"injury_support,omitempty"`
}

// DocumentResponse is a stored document, optionally with its search score.
type DocumentResponse struct {
	ID       string           `json:"id"`
	Position int              `json:"position"`
	Score    *float64         `json:"score,omitempty"`
	Text     string           `json:"text"`
	Metadata MetadataResponse `json:"metadata"`
}

func statsToResponse(st retrievaluc.Stats) StatsResponse {
	return StatsResponse{
		DocumentCount:      st.DocumentCount,
		IndexSize:          st.IndexSize,
		EmbeddingDimension: st.EmbeddingDimension,
		KnownModels:        st.KnownModels,
	}
}

func metadataToResponse(md domdoc.Metadata) MetadataResponse {
	resp := MetadataResponse{
		ShoeModel:     md.ShoeModel,
		Source:        string(md.Source),
		Playstyle:     lo.Map(md.Playstyle, func(p shoe.Playstyle, _ int) string { return string(p) }),
		WeightClass:   string(md.WeightClass),
		Features:      md.Features,
		Score:         md.Score,
		URL:           md.URL,
		Timestamp:     md.Timestamp,
		FootType:      md.FootType,
		InjurySupport: md.InjurySupport,
	}
	if md.PriceRange != nil {
		resp.PriceRange = []float64{md.PriceRange.Low, md.PriceRange.High}
	}
	return resp
}

func documentToResponse(pos int, doc *domdoc.Document) DocumentResponse {
	return DocumentResponse{
		ID:       doc.ID(),
		Position: pos,
		Text:     doc.Text(),
		Metadata: metadataToResponse(doc.Metadata()),
	}
}

func resultToResponse(r *result.Result, previewLen int) DocumentResponse {
	doc := r.Document()
	resp := documentToResponse(r.Position(), &doc)
	score := r.Score()
	resp.Score = &score
	if previewLen > 0 {
		resp.Text = truncate(resp.Text, previewLen)
	}
	return resp
}

func resultsToResponse(results []result.Result, previewLen int) []DocumentResponse {
	out := make([]DocumentResponse, len(results))
	for i := range results {
		out[i] = resultToResponse(&results[i], previewLen)
	}
	return out
}

func filterToResponse(x filter.Expression) map[string]FilterEntry {
	out := make(map[string]FilterEntry, x.Len())
	for _, f := range x.Keys() {
		e, _ := x.Entry(f)
		fe := FilterEntry{Op: e.Kind().String()}
		switch e.Kind() {
		case filter.KindExact:
			fe.Value = e.Value()
		case filter.KindAnyOf:
			fe.Values = e.Values()
		case filter.KindLessThan:
			b := e.Bound()
			fe.Bound = &b
		}
		out[string(f)] = fe
	}
	return out
}

func decisionToResponse(d *router.Decision) RouteResponse {
	return RouteResponse{
		Strategy:      string(d.Strategy),
		Reason:        d.Reason,
		Mentions:      lo.Ternary(d.Mentions != nil, d.Mentions, []string{}),
		UnknownModels: lo.Ternary(d.Unknown != nil, d.Unknown, []string{}),
		Filter:        filterToResponse(d.Filter),
	}
}

// truncate cuts s to n runes, appending "..." when something was dropped.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
