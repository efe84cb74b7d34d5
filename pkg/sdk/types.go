package catalogsearch

// Product is a catalog entry returned by search and listing.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Stock       *int   `json:"stock,omitempty"`
}

// SearchResult is the outcome of one search request.
type SearchResult struct {
	Query       string    `json:"query"`
	Total       int       `json:"total"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	AIAvailable bool      `json:"ai_available"`
	Strategy    string    `json:"strategy"`
	Results     []Product `json:"results"`
	Message     string    `json:"message"`
}

// ReindexReport summarizes a full reindex run.
type ReindexReport struct {
	RunID         string `json:"run_id"`
	Products      int    `json:"products"`
	Batches       int    `json:"batches"`
	Indexed       int    `json:"indexed"`
	FailedBatches int    `json:"failed_batches"`
	Aborted       bool   `json:"aborted"`
}

// ServiceInfo describes the running service.
type ServiceInfo struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	AIAvailable bool              `json:"ai_available"`
	Strategies  []string          `json:"strategies"`
	Endpoints   map[string]string `json:"endpoints"`
	Examples    []string          `json:"examples"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// BudgetWindow is token usage in one budget window.
// Limit and Remaining are nil when the window is unlimited.
type BudgetWindow struct {
	Used      int64  `json:"used"`
	Limit     *int64 `json:"limit,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
}

// Usage reports embedding token consumption.
type Usage struct {
	Enabled bool         `json:"enabled"`
	Daily   BudgetWindow `json:"daily"`
	Monthly BudgetWindow `json:"monthly"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type productList struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

type indexResult struct {
	ID      int64 `json:"id"`
	Indexed bool  `json:"indexed"`
}
