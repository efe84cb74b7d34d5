package indexer

import (
	"context"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// Catalog is the source of products to index.
type Catalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, id int64) (domain.Product, error)
}

// DocumentIndex embeds and stores documents.
type DocumentIndex interface {
	Add(ctx context.Context, docs []domain.Document) error
}

// Availability receives the outcome of every embedding call.
type Availability interface {
	RecordSuccess()
	RecordFailure(err error)
}
