package search

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// EmbeddingSearch resolves vector index hits back to catalog products.
type EmbeddingSearch struct {
	index   VectorIndex
	catalog Catalog
	avail   Availability
	logger  *zap.Logger
}

// NewEmbeddingSearch creates the embedding search adapter.
func NewEmbeddingSearch(index VectorIndex, catalog Catalog, avail Availability, logger *zap.Logger) *EmbeddingSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingSearch{index: index, catalog: catalog, avail: avail, logger: logger}
}

// Search returns products similar to text, best first. Index failures mark
// AI unavailable and yield nothing. Hits that do not parse or resolve are dropped.
func (e *EmbeddingSearch) Search(ctx context.Context, text string, topK int, threshold float64) []domain.Product {
	hits, err := e.index.SimilaritySearch(ctx, text, topK, threshold)
	if err != nil {
		e.logger.Warn("embedding search failed",
			zap.String("text", text), zap.Int("top_k", topK), zap.Error(err))
		e.avail.RecordFailure(err)
		return nil
	}
	e.avail.RecordSuccess()

	products := make([]domain.Product, 0, len(hits))
	for _, h := range hits {
		id, err := domain.ParseProductID(h.ID)
		if err != nil {
			e.logger.Debug("skipping unparsable document id", zap.String("id", h.ID))
			continue
		}
		p, err := e.catalog.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrProductNotFound) {
				e.logger.Debug("skipping unresolved product", zap.Int64("id", id), zap.Error(err))
			}
			continue
		}
		products = append(products, p)
	}
	return products
}
