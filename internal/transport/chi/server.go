package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/logger"
	healthuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/health"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
)

const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
	SearchConversational(ctx context.Context, req searchuc.Request) (*searchuc.ConversationalResponse, error)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server serves the search API.
type Server struct {
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	// Order matters: deployment faults before availability faults.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, domain.CodeValidation),
		timeoutHandler,
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, domain.CodeDimensionMismatch),
		sentinelHandler(domain.ErrUnsupportedOperator, http.StatusInternalServerError, domain.CodeUnsupportedOperator),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, domain.CodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, domain.CodeStoreUnavailable),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/v1/search", s.PostSearch)
	r.Get("/v1/search", s.GetSearch)
	r.Post("/v1/search/conversational", s.PostConversationalSearch)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// PostSearch handles POST /v1/search.
func (s *Server) PostSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}
	s.serveSearch(w, r, req)
}

// GetSearch handles GET /v1/search?query=...&entity_types=a,b&limit=...&debug=...
func (s *Server) GetSearch(w http.ResponseWriter, r *http.Request) {
	var (
		req   SearchRequest
		debug *bool
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &req.Query); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid query parameter: query")
		return
	}
	if err := runtime.BindQueryParameter("form", false, false, "entity_types", q, &req.EntityTypes); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid query parameter: entity_types")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &req.Limit); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid query parameter: limit")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "debug", q, &debug); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid query parameter: debug")
		return
	}
	req.Debug = debug != nil && *debug

	s.serveSearch(w, r, req)
}

// PostConversationalSearch handles POST /v1/search/conversational.
func (s *Server) PostConversationalSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}
	org, ok := OrgFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "organization could not be resolved")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.SearchConversational(ctx, req.toUsecase(org))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, ConversationalResponse{
		SearchResponse:    searchResponseFromUsecase(resp.Response),
		InterpretedIntent: string(resp.Intent),
		SuggestedFollowUp: resp.FollowUp,
	})
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request, req SearchRequest) {
	org, ok := OrgFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "organization could not be resolved")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, req.toUsecase(org))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponseFromUsecase(resp))
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

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return SearchRequest{}, false
	}
	return req, true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// safeDomainMessage returns a message for the client without exposing
// upstream internals. Validation messages are produced by this service and
// are returned as is.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	var te *domain.TimeoutError
	if errors.As(err, &te) {
		return te.Error()
	}
	sentinels := []error{
		domain.ErrDimensionMismatch,
		domain.ErrUnsupportedOperator,
		domain.ErrEmbeddingUnavailable,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// timeoutHandler maps a stage timeout onto its stage's unavailable code.
func timeoutHandler(w http.ResponseWriter, err error, msg string) bool {
	var te *domain.TimeoutError
	if !errors.As(err, &te) {
		return false
	}
	code := domain.CodeStoreUnavailable
	if te.Stage == domain.StageEmbedding {
		code = domain.CodeEmbeddingUnavailable
	}
	writeError(w, http.StatusServiceUnavailable, code, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if errors.Is(err, domain.ErrValidation) {
				log.Debug("domain error", zap.Error(err))
			} else {
				log.Warn("domain error", zap.Error(err))
			}
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, domain.CodeInternal, "internal error")
}
