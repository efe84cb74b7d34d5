package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means search still answers, from fallback strategies.
	Degraded Status = "degraded"
	// Unhealthy means the catalog is unreachable and search cannot answer.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckCoolingDown indicates AI calls are paused after a failure.
	CheckCoolingDown CheckResult = "cooling_down"
)

// Check names.
const (
	CheckCatalog     = "catalog"
	CheckVectorStore = "vector_store"
	CheckEmbedding   = "embedding"
	CheckAI          = "ai"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	catalog   Pinger
	vectors   Pinger
	ai        AIState
	embedding EmbeddingChecker
	logger    *zap.Logger
}

// New creates a Service. vectors, ai and embedding may be nil.
func New(catalog, vectors Pinger, ai AIState, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, vectors: vectors, ai: ai, embedding: embedding, logger: logger}
}

// Check runs every configured check. A catalog failure makes the service
// unhealthy; any other failure degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[CheckCatalog] = s.probe(ctx, CheckCatalog, s.catalog.Ping)
	if s.vectors != nil {
		checks[CheckVectorStore] = s.probe(ctx, CheckVectorStore, s.vectors.Ping)
	}
	if s.embedding != nil {
		checks[CheckEmbedding] = s.probe(ctx, CheckEmbedding, s.embedding.HealthCheck)
	}
	if s.ai != nil {
		checks[CheckAI] = CheckOK
		if !s.ai.Available() {
			checks[CheckAI] = CheckCoolingDown
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}
	if checks[CheckCatalog] != CheckOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, name string, fn func(context.Context) error) CheckResult {
	if err := fn(ctx); err != nil {
		s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
