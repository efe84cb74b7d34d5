package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// DefaultMaxAPIBatchSize caps the texts sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker enforces a token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Status() BudgetStatus
}

// InstrumentedEmbedder enforces the token budget around an embedder and
// logs every call. Transport metrics live in transport/openai; this layer
// owns the budget gauges.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	maxBatch int
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		maxBatch: DefaultMaxAPIBatchSize,
		logger:   logger,
	}
}

// WithMaxBatchSize caps texts per provider request.
func (e *InstrumentedEmbedder) WithMaxBatchSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		e.maxBatch = n
	}
	return e
}

// Embed vectorizes one text.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Error("Embedding request failed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	e.record(res.TotalTokens)
	e.logger.Debug("Embedding request completed",
		zap.String("provider", e.provider),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed vectorizes texts in provider-sized chunks, re-checking the
// budget before every chunk.
func (e *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	start := time.Now()

	for offset := 0; offset < len(texts); offset += e.maxBatch {
		chunk := texts[offset:min(offset+e.maxBatch, len(texts))]
		if err := e.checkBudget(ctx, len(chunk)); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		res, err := domain.EmbedAll(ctx, e.inner, chunk)
		if err != nil {
			e.logger.Error("Batch embedding request failed",
				zap.String("provider", e.provider),
				zap.String("model", e.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		e.record(res.TotalTokens)
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	if len(texts) > 0 {
		e.logger.Debug("Batch embedding completed",
			zap.String("provider", e.provider),
			zap.Duration("duration", time.Since(start)),
			zap.Int("batch_size", len(texts)),
			zap.Int("total_tokens", out.TotalTokens),
		)
	}
	return out, nil
}

// HealthCheck delegates to the inner embedder when it can check itself.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *InstrumentedEmbedder) checkBudget(ctx context.Context, n int) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		e.logger.Error("Embedding budget exceeded",
			zap.String("provider", e.provider),
			zap.Int("texts", n),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (e *InstrumentedEmbedder) record(tokens int) {
	if e.budget == nil || tokens <= 0 {
		return
	}
	e.budget.Record(int64(tokens))
	s := e.budget.Status()
	metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(e.provider, "daily").Set(float64(s.RemainingDaily()))
	metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(e.provider, "monthly").Set(float64(s.RemainingMonthly()))
}
