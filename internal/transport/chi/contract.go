package chi

import (
	"context"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/indexer"
	searchuc "github.com/kailas-cloud/catalogsearch/internal/usecase/search"
)

// Searcher runs the strategy cascade.
type Searcher interface {
	Search(ctx context.Context, raw string, topK int, threshold float64) searchuc.Result
	Strategies() []string
}

// Indexer embeds catalog products into the vector index.
type Indexer interface {
	IndexAll(ctx context.Context) (indexer.Report, error)
	IndexOne(ctx context.Context, id int64) error
}

// Catalog lists products.
type Catalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// AIState reports whether AI-dependent strategies are currently allowed.
type AIState interface {
	Available() bool
}

// BudgetReader exposes embedding token usage.
type BudgetReader interface {
	Status() embedding.BudgetStatus
}
