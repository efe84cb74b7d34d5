package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search pipeline Prometheus metrics.
var (
	// SearchStrategyTotal counts strategy attempts by outcome: hit, empty, skipped.
	SearchStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Name:      "search_strategy_total",
			Help:      "Search strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalogsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration by winning strategy",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"strategy"},
	)

	// AIAvailable is 1 while AI-dependent strategies are allowed, 0 while cooling down.
	AIAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catalogsearch",
			Name:      "ai_available",
			Help:      "AI availability breaker state (1 available, 0 cooling down)",
		},
	)

	// ReformulationTotal counts reformulations by source: cache, llm, heuristic, fallback.
	ReformulationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Name:      "reformulation_total",
			Help:      "Query reformulations by source",
		},
		[]string{"source"},
	)

	LanguageModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Name:      "llm_requests_total",
			Help:      "Language model requests",
		},
		[]string{"model", "status"},
	)

	LanguageModelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalogsearch",
			Name:      "llm_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	// IndexBatchesTotal counts indexing batches by outcome: indexed, failed, aborted.
	IndexBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Name:      "index_batches_total",
			Help:      "Indexing batches by outcome",
		},
		[]string{"outcome"},
	)

	IndexRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalogsearch",
			Name:      "index_retries_total",
			Help:      "Indexing batch retries",
		},
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers search pipeline metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(
			SearchStrategyTotal,
			SearchDuration,
			AIAvailable,
			ReformulationTotal,
			LanguageModelRequestsTotal,
			LanguageModelDuration,
			IndexBatchesTotal,
			IndexRetriesTotal,
		)
	})
}
