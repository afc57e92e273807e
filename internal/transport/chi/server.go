package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/domain"
	"github.com/kailas-cloud/courtside/internal/domain/review"
	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/courtside/internal/logger"
	healthuc "github.com/kailas-cloud/courtside/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/courtside/internal/usecase/retrieval"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeInvalidQuery           ErrorCode = "invalid_query"
	ErrorCodeBatchTooLarge          ErrorCode = "batch_too_large"
	ErrorCodePayloadTooLarge        ErrorCode = "payload_too_large"
	ErrorCodeDocumentNotFound       ErrorCode = "document_not_found"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed       ErrorCode = "method_not_allowed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeEncodingFailed         ErrorCode = "encoding_failed"
	ErrorCodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	ErrorCodePersistenceUnavailable ErrorCode = "persistence_unavailable"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// Request limit defaults.
const (
	DefaultMaxIngestBatch = 100
	DefaultMaxBodyBytes   = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options bounds request parameters. Zero values use defaults.
type Options struct {
	DefaultK       int
	MaxK           int
	MaxIngestBatch int
	MaxBodyBytes   int64
}

// Server serves the courtside HTTP API.
type Server struct {
	retrieval     *retrievaluc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.DefaultK <= 0 {
		opts.DefaultK = request.DefaultK
	}
	if opts.MaxK <= 0 || opts.MaxK > request.MaxK {
		opts.MaxK = request.MaxK
	}
	if opts.MaxIngestBatch <= 0 {
		opts.MaxIngestBatch = DefaultMaxIngestBatch
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		retrieval: retrieval,
		health:    health,
		opts:      opts,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler(domain.ErrInvalidReview, http.StatusUnprocessableEntity, ErrorCodeValidationFailed),
		validationHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeInvalidQuery),
		sentinelHandler(domain.ErrOutOfRange, http.StatusNotFound, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrEncodingFailure, http.StatusBadGateway, ErrorCodeEncodingFailed),
		sentinelHandler(domain.ErrDimensionMismatch,
			http.StatusInternalServerError, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrPersistenceUnavailable,
			http.StatusServiceUnavailable, ErrorCodePersistenceUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/stats", s.Stats)
	r.Post("/reviews", s.AddReviews)
	r.Get("/search", s.Search)
	r.Post("/retrieve", s.Retrieve)
	r.Post("/route", s.Route)
	r.Get("/documents/{position}", s.GetDocument)
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsToResponse(s.retrieval.Stats()))
}

// AddReviews handles POST /reviews. The body is a single review, an array of reviews,
// or {"reviews": [...]}.
func (s *Server) AddReviews(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		writeBodyError(w, err)
		return
	}

	inputs, err := decodeReviews(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "At least one review is required")
		return
	}
	if len(inputs) > s.opts.MaxIngestBatch {
		writeError(w, http.StatusBadRequest, ErrorCodeBatchTooLarge,
			fmt.Sprintf("Batch size %d exceeds maximum %d", len(inputs), s.opts.MaxIngestBatch))
		return
	}

	reviews := make([]review.Review, len(inputs))
	for i := range inputs {
		rv, err := inputs[i].Review()
		if err != nil {
			s.handleDomainError(w, r, fmt.Errorf("review %d: %w", i, err))
			return
		}
		reviews[i] = rv
	}

	res, err := s.retrieval.AddReviews(r.Context(), reviews)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AddReviewsResponse{
		Added:         res.Added,
		FirstPosition: res.FirstPosition,
		IDs:           res.IDs,
		Persisted:     res.Persisted,
		Total:         res.FirstPosition + res.Added,
	})
}

// Search handles GET /search?q=&k=. It runs an unfiltered similarity search
// and truncates document text for display.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var (
		q string
		k *int
	)
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", r.URL.Query(), &k); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter k: "+err.Error())
		return
	}

	req, err := s.newRequest(q, k, request.Preferences{})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, err := s.retrieval.SimilaritySearch(r.Context(), req.Query(), req.K(), filter.Expression{})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   req.Query(),
		Results: resultsToResponse(results, searchPreviewLength),
	})
}

// Retrieve handles POST /retrieve: routing plus a filtered store search.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var body QueryRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	req, err := s.queryFromRequest(&body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ret := s.retrieval.Retrieve(r.Context(), &req)
	writeJSON(w, http.StatusOK, RetrieveResponse{
		RouteResponse: decisionToResponse(&ret.Decision),
		Documents:     resultsToResponse(ret.Results, 0),
		Degraded:      ret.Degraded,
	})
}

// Route handles POST /route: the routing decision alone.
func (s *Server) Route(w http.ResponseWriter, r *http.Request) {
	var body QueryRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	req, err := s.queryFromRequest(&body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	d := s.retrieval.Route(req.Query(), req.Preferences())
	writeJSON(w, http.StatusOK, decisionToResponse(&d))
}

// GetDocument handles GET /documents/{position}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	var pos int
	err := runtime.BindStyledParameterWithOptions("simple", "position", gochi.URLParam(r, "position"), &pos,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter position: "+err.Error())
		return
	}

	doc, err := s.retrieval.Get(pos)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToResponse(pos, &doc))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) queryFromRequest(body *QueryRequest) (request.Request, error) {
	prefs, err := request.NewPreferences(body.Playstyle, body.Budget, body.FootType, body.InjuryConcerns)
	if err != nil {
		return request.Request{}, err
	}
	return s.newRequest(body.Query, body.K, prefs)
}

// newRequest applies the server's k default and cap before request validation.
func (s *Server) newRequest(query string, k *int, prefs request.Preferences) (request.Request, error) {
	n := s.opts.DefaultK
	if k != nil {
		if *k <= 0 {
			return request.Request{}, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidQuery, *k)
		}
		n = min(*k, s.opts.MaxK)
	}
	req, err := request.New(query, n, prefs)
	if err != nil {
		return request.Request{}, fmt.Errorf("build request: %w", err)
	}
	return req, nil
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)).Decode(dst); err != nil {
		writeBodyError(w, err)
		return false
	}
	return true
}

func decodeReviews(body []byte) ([]review.Input, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []review.Input
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var batch AddReviewsRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	if batch.Reviews != nil {
		return batch.Reviews, nil
	}

	var single review.Input
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []review.Input{single}, nil
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidReview,
		domain.ErrInvalidQuery,
		domain.ErrOutOfRange,
		domain.ErrEncodingFailure,
		domain.ErrDimensionMismatch,
		domain.ErrPersistenceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler is a sentinelHandler that returns the full error text.
func validationHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
