package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gochi "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/indexer"
	searchuc "github.com/kailas-cloud/catalogsearch/internal/usecase/search"
)

// --- Mocks ---

type mockSearcher struct {
	result    searchuc.Result
	gotRaw    string
	gotTopK   int
	gotThresh float64
	calls     int
}

func (m *mockSearcher) Search(_ context.Context, raw string, topK int, threshold float64) searchuc.Result {
	m.calls++
	m.gotRaw, m.gotTopK, m.gotThresh = raw, topK, threshold
	return m.result
}

func (m *mockSearcher) Strategies() []string {
	return []string{searchuc.StrategyAIComplete, searchuc.StrategyBasicText}
}

type mockIndexer struct {
	report   indexer.Report
	allErr   error
	oneErr   error
	gotOneID int64
}

func (m *mockIndexer) IndexAll(context.Context) (indexer.Report, error) { return m.report, m.allErr }

func (m *mockIndexer) IndexOne(_ context.Context, id int64) error {
	m.gotOneID = id
	return m.oneErr
}

type mockCatalog struct {
	products []domain.Product
	err      error
}

func (m *mockCatalog) FindAll(context.Context) ([]domain.Product, error) { return m.products, m.err }

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockAI struct{ available bool }

func (m *mockAI) Available() bool { return m.available }

type mockBudget struct{ status embedding.BudgetStatus }

func (m *mockBudget) Status() embedding.BudgetStatus { return m.status }

type fixture struct {
	search  *mockSearcher
	indexer *mockIndexer
	catalog *mockCatalog
	health  *mockHealth
	ai      *mockAI
	router  http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		search:  &mockSearcher{},
		indexer: &mockIndexer{},
		catalog: &mockCatalog{},
		health:  &mockHealth{},
		ai:      &mockAI{available: true},
	}
	srv := NewServer(Dependencies{
		Search:  f.search,
		Indexer: f.indexer,
		Catalog: f.catalog,
		Health:  f.health,
		AI:      f.ai,
	}, Config{}, nil)
	r := gochi.NewRouter()
	srv.Register(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func stock(n int) *int { return &n }

// --- Tests ---

func TestSearchProducts_ConfiguredZeroThreshold(t *testing.T) {
	search := &mockSearcher{}
	zero := 0.0
	srv := NewServer(Dependencies{Search: search, AI: &mockAI{available: true}},
		Config{DefaultLimit: 3, DefaultThreshold: &zero}, nil)
	r := gochi.NewRouter()
	srv.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/api/products/search?q=clavo", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if search.gotTopK != 3 || search.gotThresh != 0 {
		t.Errorf("defaults: got topK=%d threshold=%v, want 3 and 0", search.gotTopK, search.gotThresh)
	}
}

func TestSearchProducts_Defaults(t *testing.T) {
	f := newFixture()
	f.search.result = searchuc.Result{
		Products: []domain.Product{{ID: 7, Name: "Cerrojo galvanizado 5/8", Stock: stock(3)}},
		Strategy: searchuc.StrategyHybrid,
	}

	rr := f.do(t, http.MethodGet, "/api/products/search?q="+url.QueryEscape("cerrojo gal 5/8"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if f.search.gotRaw != "cerrojo gal 5/8" {
		t.Errorf("raw: got %q", f.search.gotRaw)
	}
	if f.search.gotTopK != DefaultLimit || f.search.gotThresh != DefaultThreshold {
		t.Errorf("defaults: got topK=%d threshold=%v", f.search.gotTopK, f.search.gotThresh)
	}

	resp := decode[SearchResponse](t, rr)
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("results: got total=%d len=%d", resp.Total, len(resp.Results))
	}
	if resp.Results[0].ID != 7 || resp.Results[0].Stock == nil || *resp.Results[0].Stock != 3 {
		t.Errorf("unexpected product: %+v", resp.Results[0])
	}
	if resp.Strategy != searchuc.StrategyHybrid {
		t.Errorf("strategy: got %q", resp.Strategy)
	}
	if !resp.AIAvailable {
		t.Error("ai_available should be true")
	}
	if resp.Message != "Found 1 relevant products" {
		t.Errorf("message: got %q", resp.Message)
	}
}

func TestSearchProducts_ExplicitParams(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodGet, "/api/products/search?q=tubo&limit=1000&threshold=0.25")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if f.search.gotTopK != 1000 {
		t.Errorf("topK is clamped by the search service, got %d", f.search.gotTopK)
	}
	if f.search.gotThresh != 0.25 {
		t.Errorf("threshold: got %v", f.search.gotThresh)
	}
}

func TestSearchProducts_EmptyResult(t *testing.T) {
	f := newFixture()
	f.search.result = searchuc.Result{Strategy: searchuc.StrategyNone}
	f.ai.available = false

	rr := f.do(t, http.MethodGet, "/api/products/search?q=nada")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	resp := decode[SearchResponse](t, rr)
	if resp.Total != 0 || resp.Results == nil {
		t.Errorf("expected empty, non-null results: %+v", resp)
	}
	if resp.AIAvailable {
		t.Error("ai_available should be false")
	}
	if resp.Strategy != searchuc.StrategyNone {
		t.Errorf("strategy: got %q", resp.Strategy)
	}
}

func TestSearchProducts_BlankQuery(t *testing.T) {
	for _, target := range []string{
		"/api/products/search",
		"/api/products/search?q=",
		"/api/products/search?q=%20%20",
	} {
		f := newFixture()
		rr := f.do(t, http.MethodGet, target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
			continue
		}
		resp := decode[ErrorResponse](t, rr)
		if resp.Code != CodeBadRequest || resp.Example == "" {
			t.Errorf("%s: unexpected body %+v", target, resp)
		}
		if f.search.calls != 0 {
			t.Errorf("%s: search should not be called", target)
		}
	}
}

func TestSearchProducts_InvalidParams(t *testing.T) {
	for _, target := range []string{
		"/api/products/search?q=tubo&limit=abc",
		"/api/products/search?q=tubo&threshold=high",
	} {
		f := newFixture()
		rr := f.do(t, http.MethodGet, target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
		}
		if f.search.calls != 0 {
			t.Errorf("%s: search should not be called", target)
		}
	}
}

func TestListProducts(t *testing.T) {
	f := newFixture()
	f.catalog.products = []domain.Product{{ID: 1, Name: "Tubo PVC"}, {ID: 2, Name: "Martillo"}}

	rr := f.do(t, http.MethodGet, "/api/products")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	resp := decode[ProductListResponse](t, rr)
	if resp.Total != 2 || len(resp.Products) != 2 || resp.Products[1].Name != "Martillo" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestListProducts_CatalogError(t *testing.T) {
	f := newFixture()
	f.catalog.err = errors.New("connection refused")

	rr := f.do(t, http.MethodGet, "/api/products")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Message != "internal error" {
		t.Errorf("internal details leaked: %q", resp.Message)
	}
}

func TestReindex(t *testing.T) {
	f := newFixture()
	f.indexer.report = indexer.Report{RunID: "run-1", Products: 45, Batches: 3, Indexed: 40, FailedBatches: 1}

	rr := f.do(t, http.MethodPost, "/api/products/reindex")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	resp := decode[ReindexResponse](t, rr)
	if resp.RunID != "run-1" || resp.Batches != 3 || resp.Indexed != 40 || resp.FailedBatches != 1 {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestReindex_InProgress(t *testing.T) {
	f := newFixture()
	f.indexer.allErr = domain.ErrIndexingInProgress

	rr := f.do(t, http.MethodPost, "/api/products/reindex")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeIndexingInProgress {
		t.Errorf("code: got %q", resp.Code)
	}
}

func TestIndexProduct(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodPost, "/api/products/42/index")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if f.indexer.gotOneID != 42 {
		t.Errorf("id: got %d, want 42", f.indexer.gotOneID)
	}
	resp := decode[IndexProductResponse](t, rr)
	if resp.ID != 42 || !resp.Indexed {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestIndexProduct_InvalidID(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodPost, "/api/products/abc/index")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestIndexProduct_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not found", fmt.Errorf("find product 9: %w", domain.ErrProductNotFound), http.StatusNotFound, CodeNotFound},
		{
			"quota sentinel",
			fmt.Errorf("%w: product 9: %w", domain.ErrIndexing, domain.ErrQuotaExceeded),
			http.StatusPaymentRequired, CodeQuotaExceeded,
		},
		{
			"quota in message",
			fmt.Errorf("%w: product 9: %w", domain.ErrIndexing, errors.New("You exceeded your current quota")),
			http.StatusPaymentRequired, CodeQuotaExceeded,
		},
		{
			"rate limited",
			fmt.Errorf("%w: product 9: %w", domain.ErrIndexing, domain.ErrRateLimited),
			http.StatusTooManyRequests, CodeRateLimited,
		},
		{
			"provider",
			fmt.Errorf("%w: product 9: %w", domain.ErrIndexing, domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, CodeProviderError,
		},
		{
			"vector store",
			fmt.Errorf("%w: product 9: %w", domain.ErrIndexing, domain.ErrVectorStore),
			http.StatusBadGateway, CodeProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.indexer.oneErr = tt.err

			rr := f.do(t, http.MethodPost, "/api/products/9/index")
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if resp := decode[ErrorResponse](t, rr); resp.Code != tt.wantBody {
				t.Errorf("code: got %q, want %q", resp.Code, tt.wantBody)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodGet, "/api/products/info")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	resp := decode[InfoResponse](t, rr)
	if len(resp.Strategies) != 2 || resp.Strategies[0] != searchuc.StrategyAIComplete {
		t.Errorf("strategies: got %v", resp.Strategies)
	}
	if !resp.AIAvailable {
		t.Error("ai_available should be true")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status healthuc.Status
		want   int
	}{
		{"ok", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusOK},
		{"error", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.CheckCatalog: healthuc.CheckOK},
			}

			rr := f.do(t, http.MethodGet, "/health")
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			resp := decode[HealthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks[healthuc.CheckCatalog] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestUsage_Disabled(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodGet, "/api/usage")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if resp := decode[UsageResponse](t, rr); resp.Enabled {
		t.Errorf("expected disabled usage, got %+v", resp)
	}
}

func TestUsage(t *testing.T) {
	budget := &mockBudget{status: embedding.BudgetStatus{
		DailyUsed: 400, DailyLimit: 1000, MonthlyUsed: 5000,
	}}
	srv := NewServer(Dependencies{Budget: budget}, Config{}, nil)
	r := gochi.NewRouter()
	srv.Register(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/usage", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	resp := decode[UsageResponse](t, rr)
	if !resp.Enabled || resp.Daily.Used != 400 {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if resp.Daily.Limit == nil || *resp.Daily.Limit != 1000 || resp.Daily.Remaining == nil || *resp.Daily.Remaining != 600 {
		t.Errorf("daily window: %+v", resp.Daily)
	}
	if resp.Monthly.Used != 5000 || resp.Monthly.Limit != nil || resp.Monthly.Remaining != nil {
		t.Errorf("monthly window should be unlimited: %+v", resp.Monthly)
	}
}

func TestSafeDomainMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", domain.ErrProductNotFound), "product not found"},
		{errors.New("insufficient_quota"), "quota exceeded"},
		{fmt.Errorf("x: %w", domain.ErrLanguageModelError), "language model error"},
		{errors.New("dial tcp 10.0.0.1:5432: connection refused"), "internal error"},
	}
	for _, tt := range tests {
		if got := safeDomainMessage(tt.err); got != tt.want {
			t.Errorf("safeDomainMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
