package chi

import (
	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/indexer"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeNotFound           = "not_found"
	CodeQuotaExceeded      = "quota_exceeded"
	CodeRateLimited        = "rate_limited"
	CodeProviderError      = "provider_error"
	CodeIndexingInProgress = "indexing_in_progress"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Example string `json:"example,omitempty"`
}

// ProductResponse is the JSON form of a catalog product.
type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Stock       *int   `json:"stock,omitempty"`
}

// SearchResponse is returned by GET /api/products/search.
type SearchResponse struct {
	Query       string            `json:"query"`
	Total       int               `json:"total"`
	ElapsedMs   int64             `json:"elapsed_ms"`
	AIAvailable bool              `json:"ai_available"`
	Strategy    string            `json:"strategy"`
	Results     []ProductResponse `json:"results"`
	Message     string            `json:"message"`
}

// ProductListResponse is returned by GET /api/products.
type ProductListResponse struct {
	Total    int               `json:"total"`
	Products []ProductResponse `json:"products"`
}

// ReindexResponse is returned by POST /api/products/reindex.
type ReindexResponse struct {
	RunID         string `json:"run_id"`
	Products      int    `json:"products"`
	Batches       int    `json:"batches"`
	Indexed       int    `json:"indexed"`
	FailedBatches int    `json:"failed_batches"`
	Aborted       bool   `json:"aborted"`
}

// IndexProductResponse is returned by POST /api/products/{id}/index.
type IndexProductResponse struct {
	ID      int64 `json:"id"`
	Indexed bool  `json:"indexed"`
}

// InfoResponse is returned by GET /api/products/info.
type InfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	AIAvailable bool              `json:"ai_available"`
	Strategies  []string          `json:"strategies"`
	Endpoints   map[string]string `json:"endpoints"`
	Examples    []string          `json:"examples"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// BudgetWindow is token usage in one budget window. Limit and Remaining
// are omitted when the window is unlimited.
type BudgetWindow struct {
	Used      int64  `json:"used"`
	Limit     *int64 `json:"limit,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
}

// UsageResponse is returned by GET /api/usage.
type UsageResponse struct {
	Enabled bool         `json:"enabled"`
	Daily   BudgetWindow `json:"daily"`
	Monthly BudgetWindow `json:"monthly"`
}

func budgetWindow(used, limit, remaining int64) BudgetWindow {
	w := BudgetWindow{Used: used}
	if limit > 0 {
		w.Limit = &limit
		w.Remaining = &remaining
	}
	return w
}

func usageToResponse(s embedding.BudgetStatus) UsageResponse {
	return UsageResponse{
		Enabled: true,
		Daily:   budgetWindow(s.DailyUsed, s.DailyLimit, s.RemainingDaily()),
		Monthly: budgetWindow(s.MonthlyUsed, s.MonthlyLimit, s.RemainingMonthly()),
	}
}

func productToResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Stock:       p.Stock,
	}
}

func productsToResponse(products []domain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = productToResponse(p)
	}
	return out
}

func reportToResponse(r indexer.Report) ReindexResponse {
	return ReindexResponse{
		RunID:         r.RunID,
		Products:      r.Products,
		Batches:       r.Batches,
		Indexed:       r.Indexed,
		FailedBatches: r.FailedBatches,
		Aborted:       r.Aborted,
	}
}
