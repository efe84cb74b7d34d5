package search

import (
	"context"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/reformulate"
)

// Catalog is the product store read by the search strategies.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (domain.Product, error)
	SearchTextContains(ctx context.Context, term string, limit int) (domain.Page, error)
}

// VectorIndex returns document ids ranked by similarity to text.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, text string, topK int, threshold float64) ([]domain.Hit, error)
}

// Reformulator extracts structured attributes from a raw query.
type Reformulator interface {
	Reformulate(ctx context.Context, raw string) domain.QueryAttributes
}

// Normalizer is the local, catalog-free query normalizer.
type Normalizer interface {
	Normalize(raw string) reformulate.Normalized
}

// Availability is the AI availability breaker.
type Availability interface {
	ShouldTryAI() bool
	RecordSuccess()
	RecordFailure(err error)
}

// Strategy is one step of the search cascade.
type Strategy interface {
	Name() string
	// Attempt returns candidates for q. An empty result or an error moves
	// the cascade to the next strategy; ErrSkipped means it was not tried.
	Attempt(ctx context.Context, q Query) ([]domain.Product, error)
}
