package reformulate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// PrimaryTermInferrer guesses the product type of a query.
type PrimaryTermInferrer interface {
	Infer(ctx context.Context, raw string) string
}

type textSearcher interface {
	SearchTextContains(ctx context.Context, term string, limit int) (domain.Page, error)
}

// CatalogInferrer picks the query token with the most catalog matches.
type CatalogInferrer struct {
	catalog textSearcher
	logger  *zap.Logger
}

// NewCatalogInferrer creates an inferrer backed by catalog text search.
func NewCatalogInferrer(catalog textSearcher, logger *zap.Logger) *CatalogInferrer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogInferrer{catalog: catalog, logger: logger}
}

// Infer returns the token with the highest positive match count, or "".
// Catalog errors count as zero matches.
func (i *CatalogInferrer) Infer(ctx context.Context, raw string) string {
	normalized := normalizeText(raw, "")
	if normalized == "" {
		return ""
	}

	seen := make(map[string]struct{})
	best, bestTotal := "", int64(0)
	for _, f := range strings.Fields(normalized) {
		tok := nonTokenCharsRe.ReplaceAllString(f, "")
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, stop := inferStopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		page, err := i.catalog.SearchTextContains(ctx, tok, 1)
		if err != nil {
			i.logger.Debug("primary term probe failed", zap.String("token", tok), zap.Error(err))
			continue
		}
		if page.Total > bestTotal {
			best, bestTotal = tok, page.Total
		}
	}
	return best
}
