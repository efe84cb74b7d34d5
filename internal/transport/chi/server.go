package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	logpkg "github.com/kailas-cloud/catalogsearch/internal/logger"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	"github.com/kailas-cloud/catalogsearch/internal/version"
)

// Defaults for search query parameters.
const (
	DefaultLimit     = 5
	DefaultThreshold = 0.6
)

const searchExample = "/api/products/search?q=cerrojo gal 5/8 x 16 pulgadas"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Config holds request defaults. A nil DefaultThreshold means 0.6;
// zero is a valid threshold.
type Config struct {
	DefaultLimit     int
	DefaultThreshold *float64
}

// Dependencies are the use cases served over HTTP. AI and Budget may be nil.
type Dependencies struct {
	Search  Searcher
	Indexer Indexer
	Catalog Catalog
	Health  HealthChecker
	AI      AIState
	Budget  BudgetReader
}

// Server serves the product search API.
type Server struct {
	search        Searcher
	indexer       Indexer
	catalog       Catalog
	health        HealthChecker
	ai            AIState
	budget        BudgetReader
	cfg           Config
	threshold     float64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(deps Dependencies, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	threshold := DefaultThreshold
	if cfg.DefaultThreshold != nil && *cfg.DefaultThreshold >= 0 {
		threshold = *cfg.DefaultThreshold
	}
	s := &Server{
		search:  deps.Search,
		indexer: deps.Indexer,
		catalog: deps.Catalog,
		health:  deps.Health,
		ai:      deps.AI,
		budget:  deps.Budget,
		cfg:       cfg,
		threshold: threshold,
		logger:    logger,
	}
	// Order matters: a wrapped ErrIndexing caused by a quota failure is a 402.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		quotaHandler,
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrIndexingInProgress, http.StatusConflict, CodeIndexingInProgress),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrLanguageModelError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrVectorStore, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrIndexing, http.StatusBadGateway, CodeProviderError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/api/products", s.ListProducts)
	r.Get("/api/products/search", s.SearchProducts)
	r.Get("/api/products/info", s.Info)
	r.Post("/api/products/reindex", s.Reindex)
	r.Post("/api/products/{id}/index", s.IndexProduct)
	r.Get("/api/usage", s.Usage)
}

// SearchProducts handles GET /api/products/search.
func (s *Server) SearchProducts(w http.ResponseWriter, r *http.Request) {
	var (
		q         *string
		limit     *int
		threshold *float64
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "q", query, &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter limit: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "threshold", query, &threshold); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter threshold: "+err.Error())
		return
	}

	if q == nil || strings.TrimSpace(*q) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeBadRequest,
			Message: "Parameter q is required",
			Example: searchExample,
		})
		return
	}

	topK := s.cfg.DefaultLimit
	if limit != nil {
		topK = *limit
	}
	minScore := s.threshold
	if threshold != nil {
		minScore = *threshold
	}

	start := time.Now()
	res := s.search.Search(r.Context(), *q, topK, minScore)
	elapsed := time.Since(start)

	logpkg.FromContext(r.Context()).Info("search completed",
		zap.String("query", *q),
		zap.String("strategy", res.Strategy),
		zap.Int("results", len(res.Products)),
		zap.Duration("elapsed", elapsed),
	)

	msg := fmt.Sprintf("Found %d relevant products", len(res.Products))
	if len(res.Products) == 0 {
		msg = "No relevant products found. Try broader terms or a lower threshold."
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:       *q,
		Total:       len(res.Products),
		ElapsedMs:   elapsed.Milliseconds(),
		AIAvailable: s.aiAvailable(),
		Strategy:    res.Strategy,
		Results:     productsToResponse(res.Products),
		Message:     msg,
	})
}

// ListProducts handles GET /api/products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.FindAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductListResponse{
		Total:    len(products),
		Products: productsToResponse(products),
	})
}

// Reindex handles POST /api/products/reindex. The run is synchronous.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := s.indexer.IndexAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse(report))
}

// IndexProduct handles POST /api/products/{id}/index.
func (s *Server) IndexProduct(w http.ResponseWriter, r *http.Request) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", gochi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter id: "+err.Error())
		return
	}

	if err := s.indexer.IndexOne(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexProductResponse{ID: id, Indexed: true})
}

// Info handles GET /api/products/info.
func (s *Server) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:        "catalogsearch",
		Version:     version.Version,
		Description: "Product search with AI query reformulation and automatic fallback",
		AIAvailable: s.aiAvailable(),
		Strategies:  s.search.Strategies(),
		Endpoints: map[string]string{
			"GET /api/products/search":      "Search products (params: q, limit, threshold)",
			"GET /api/products":             "List all products",
			"POST /api/products/reindex":    "Re-embed every product",
			"POST /api/products/{id}/index": "Re-embed one product",
			"GET /api/products/info":        "API information",
			"GET /api/usage":                 "Embedding token usage",
			"GET /health":                   "Component health",
		},
		Examples: []string{
			"/api/products/search?q=cerrojo gal cinco octavos por dieciseis plg",
			"/api/products/search?q=tornillo 3/4 x 10",
			"/api/products/search?q=martillo stanley",
		},
	})
}

// Usage handles GET /api/usage.
func (s *Server) Usage(w http.ResponseWriter, _ *http.Request) {
	if s.budget == nil {
		writeJSON(w, http.StatusOK, UsageResponse{})
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.budget.Status()))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
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

func (s *Server) aiAvailable() bool {
	return s.ai != nil && s.ai.Available()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	if domain.IsQuotaError(err) {
		return domain.ErrQuotaExceeded.Error()
	}
	sentinels := []error{
		domain.ErrProductNotFound,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrIndexingInProgress,
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingProviderError,
		domain.ErrLanguageModelError,
		domain.ErrVectorStore,
		domain.ErrIndexing,
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

// quotaHandler also catches providers that report quota only in the message.
func quotaHandler(w http.ResponseWriter, err error, msg string) bool {
	if !domain.IsQuotaError(err) {
		return false
	}
	writeError(w, http.StatusPaymentRequired, CodeQuotaExceeded, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
