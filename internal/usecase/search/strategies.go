package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// Strategy names as reported to callers and metrics.
const (
	StrategyAIComplete   = "ai_complete"
	StrategyHybrid       = "hybrid"
	StrategyAdvancedText = "advanced_text"
	StrategyBasicText    = "basic_text"
)

// Candidate pool widths relative to topK.
const (
	aiCompleteWidth   = 3
	hybridWidth       = 2
	advancedTextWidth = 3
)

// Dependencies wires the default cascade.
type Dependencies struct {
	Catalog      Catalog
	Embeddings   *EmbeddingSearch
	Reformulator Reformulator
	Normalizer   Normalizer
	Reranker     *LLMReranker
	Breaker      Availability
}

// DefaultStrategies returns AI-complete, hybrid, advanced text and basic text, in that order.
func DefaultStrategies(d Dependencies, logger *zap.Logger) []Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []Strategy{
		&AIComplete{breaker: d.Breaker, reformulator: d.Reformulator, embeddings: d.Embeddings, reranker: d.Reranker, logger: logger},
		&Hybrid{normalizer: d.Normalizer, embeddings: d.Embeddings},
		&AdvancedText{normalizer: d.Normalizer, catalog: d.Catalog},
		&BasicText{catalog: d.Catalog},
	}
}

// AIComplete reformulates with the language model, searches embeddings and
// lets the model rerank. Skipped while AI is cooling down.
type AIComplete struct {
	breaker      Availability
	reformulator Reformulator
	embeddings   *EmbeddingSearch
	reranker     *LLMReranker
	logger       *zap.Logger
}

func (s *AIComplete) Name() string { return StrategyAIComplete }

func (s *AIComplete) Attempt(ctx context.Context, q Query) ([]domain.Product, error) {
	if !s.breaker.ShouldTryAI() {
		return nil, ErrSkipped
	}

	attrs := s.reformulator.Reformulate(ctx, q.Raw)
	text := attrs.Normalized
	if text == "" {
		text = q.Text
	}
	s.logger.Debug("query reformulated",
		zap.String("query", q.Text),
		zap.String("normalized", text),
		zap.String("primary_term", attrs.PrimaryTerm),
		zap.String("brand", attrs.Brand),
		zap.String("fraction", attrs.Fraction),
	)

	width := q.TopK * aiCompleteWidth
	candidates := s.embeddings.Search(ctx, text, width, q.Threshold)
	if len(candidates) == 0 && text != q.Text {
		candidates = s.embeddings.Search(ctx, q.Text, width, q.Threshold)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return s.reranker.Rerank(ctx, q.Text, candidates, q.TopK), nil
}

// Hybrid searches embeddings with the locally normalized query and ranks
// candidates heuristically.
type Hybrid struct {
	normalizer Normalizer
	embeddings *EmbeddingSearch
}

func (s *Hybrid) Name() string { return StrategyHybrid }

func (s *Hybrid) Attempt(ctx context.Context, q Query) ([]domain.Product, error) {
	n := s.normalizer.Normalize(q.Text)
	text := n.Text
	if text == "" {
		text = q.Text
	}

	candidates := s.embeddings.Search(ctx, text, q.TopK*hybridWidth, q.Threshold)
	if len(candidates) == 0 {
		return nil, nil
	}
	return RerankHeuristic(candidates, n, q.TopK), nil
}

// AdvancedText runs catalog text searches for the keyword, fraction, size
// and raw query concurrently, unions them and ranks heuristically.
type AdvancedText struct {
	normalizer Normalizer
	catalog    Catalog
}

func (s *AdvancedText) Name() string { return StrategyAdvancedText }

func (s *AdvancedText) Attempt(ctx context.Context, q Query) ([]domain.Product, error) {
	n := s.normalizer.Normalize(q.Text)
	terms := []string{n.Keyword, n.Fraction, n.Size, q.Text}
	pages := make([][]domain.Product, len(terms))
	width := q.TopK * advancedTextWidth

	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		if term == "" {
			continue
		}
		g.Go(func() error {
			page, err := s.catalog.SearchTextContains(gctx, term, width)
			if err != nil {
				return fmt.Errorf("text search %q: %w", term, err)
			}
			pages[i] = page.Products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var union []domain.Product
	for _, page := range pages {
		for _, p := range page {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			union = append(union, p)
		}
	}
	if len(union) == 0 {
		return nil, nil
	}
	return RerankHeuristic(union, n, q.TopK), nil
}

// BasicText is the last resort: one catalog text search, repository order.
type BasicText struct {
	catalog Catalog
}

func (s *BasicText) Name() string { return StrategyBasicText }

func (s *BasicText) Attempt(ctx context.Context, q Query) ([]domain.Product, error) {
	page, err := s.catalog.SearchTextContains(ctx, q.Text, q.TopK)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return page.Products, nil
}
