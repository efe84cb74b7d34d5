package search

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Result limits.
const (
	MinTopK = 1
	MaxTopK = 50
)

// StrategyNone is reported when no strategy produced results.
const StrategyNone = "none"

// ErrSkipped is returned by a strategy that chose not to run.
var ErrSkipped = errors.New("strategy skipped")

// Query is a clamped search request. Raw is the query exactly as received
// and keys the reformulation cache; Text is Raw trimmed.
type Query struct {
	Raw       string
	Text      string
	TopK      int
	Threshold float64
}

// Result is the outcome of a search and the strategy that produced it.
type Result struct {
	Products []domain.Product
	Strategy string
}

// Service runs the strategy cascade. The first strategy with a non-empty
// result wins; results are never merged across strategies.
type Service struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New creates a search service trying strategies in order.
func New(strategies []Strategy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{strategies: strategies, logger: logger}
}

// Strategies returns the strategy names in cascade order.
func (s *Service) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

// Search returns up to topK products for raw. It never fails: strategy
// errors are logged and the next strategy is tried. A blank query returns
// an empty result without touching any collaborator.
func (s *Service) Search(ctx context.Context, raw string, topK int, threshold float64) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Strategy: StrategyNone}
	}

	q := Query{Raw: raw, Text: strings.TrimSpace(raw), TopK: ClampTopK(topK), Threshold: ClampThreshold(threshold)}
	start := time.Now()

	for _, st := range s.strategies {
		name := st.Name()
		products, err := st.Attempt(ctx, q)
		switch {
		case errors.Is(err, ErrSkipped):
			metrics.SearchStrategyTotal.WithLabelValues(name, "skipped").Inc()
			s.logger.Debug("strategy skipped", zap.String("strategy", name))
			continue
		case err != nil:
			metrics.SearchStrategyTotal.WithLabelValues(name, "error").Inc()
			s.logger.Warn("strategy failed, falling through",
				zap.String("strategy", name), zap.String("query", q.Text), zap.Error(err))
			continue
		case len(products) == 0:
			metrics.SearchStrategyTotal.WithLabelValues(name, "empty").Inc()
			s.logger.Debug("strategy returned nothing", zap.String("strategy", name))
			continue
		}

		if len(products) > q.TopK {
			products = products[:q.TopK]
		}
		metrics.SearchStrategyTotal.WithLabelValues(name, "hit").Inc()
		metrics.SearchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		s.logger.Debug("strategy hit",
			zap.String("strategy", name), zap.Int("results", len(products)))
		return Result{Products: products, Strategy: name}
	}

	metrics.SearchDuration.WithLabelValues(StrategyNone).Observe(time.Since(start).Seconds())
	return Result{Strategy: StrategyNone}
}

// ClampTopK bounds topK to [MinTopK, MaxTopK].
func ClampTopK(topK int) int {
	return min(max(topK, MinTopK), MaxTopK)
}

// ClampThreshold bounds threshold to [0, 1]. NaN becomes 0.
func ClampThreshold(threshold float64) float64 {
	if math.IsNaN(threshold) {
		return 0
	}
	return math.Min(math.Max(threshold, 0), 1)
}
