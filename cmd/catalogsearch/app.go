package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/config"
	"github.com/kailas-cloud/catalogsearch/internal/db"
	dbRedis "github.com/kailas-cloud/catalogsearch/internal/db/redis"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/catalogsearch/internal/repository/budget"
	"github.com/kailas-cloud/catalogsearch/internal/repository/catalog"
	"github.com/kailas-cloud/catalogsearch/internal/repository/embcache"
	"github.com/kailas-cloud/catalogsearch/internal/repository/querycache"
	"github.com/kailas-cloud/catalogsearch/internal/repository/vectorindex"
	openaiTransport "github.com/kailas-cloud/catalogsearch/internal/transport/openai"
	qdrantTransport "github.com/kailas-cloud/catalogsearch/internal/transport/qdrant"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/breaker"
	embeddinguc "github.com/kailas-cloud/catalogsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/indexer"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/reformulate"
	searchuc "github.com/kailas-cloud/catalogsearch/internal/usecase/search"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/vocabulary"
)

// vectorIndex is what both vector store backends provide.
type vectorIndex interface {
	searchuc.VectorIndex
	indexer.DocumentIndex
	healthuc.Pinger
	EnsureIndex(ctx context.Context) error
	Reset(ctx context.Context) error
}

// app is the composition root shared by every subcommand.
type app struct {
	catalog *catalog.Repository
	vectors vectorIndex
	breaker *breaker.Breaker
	budget  *embeddinguc.BudgetTracker // nil when no limit is configured
	search  *searchuc.Service
	indexer *indexer.Service
	health  *healthuc.Service
	closers []func()
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Catalog
	if cfg.Catalog.MigrateOnStart {
		if err := catalog.RunMigrations(cfg.Catalog.DSN); err != nil {
			return nil, fmt.Errorf("migrate catalog: %w", err)
		}
		logger.Info("Catalog migrations applied")
	}
	a.catalog, err = catalog.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	a.closers = append(a.closers, a.catalog.Close)
	logger.Info("Connected to catalog")

	// Redis-protocol store: vectors, embedding cache, budget counters, query cache
	var store db.Store
	if cfg.Vector.UsesRedis() || cfg.Search.CacheBackend == config.CacheRedis {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Vector.Addrs,
			Username: cfg.Vector.Username,
			Password: cfg.Vector.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		if err := s.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("store not ready: %w", err)
		}
		store = s
		logger.Info("Connected to store", zap.Strings("addrs", cfg.Vector.Addrs))
	}

	a.breaker = breaker.New(cfg.Search.BreakerInterval(), logger.Named("breaker"))

	// Single BudgetTracker shared by every embedding call.
	if cfg.Embedding.Budget.Enabled() {
		action := embeddinguc.BudgetActionWarn
		if cfg.Embedding.Budget.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		a.budget = embeddinguc.NewBudgetTracker(cfg.Embedding.Provider, embeddinguc.BudgetLimits{
			Daily:   cfg.Embedding.Budget.DailyTokenLimit,
			Monthly: cfg.Embedding.Budget.MonthlyTokenLimit,
			Action:  action,
		}, logger).WithKeyPrefix(cfg.Vector.KeyPrefix)
		if store != nil {
			a.budget.WithStore(ctx, budgetrepo.New(store, 0, 0))
		}
	}

	embedder := buildEmbedder(cfg, store, a.budget, logger)

	a.vectors, err = buildVectorIndex(cfg, store, embedder, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := a.vectors.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}
	if err := a.vectors.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}

	// Pass a nil interface, not a typed nil pointer, when no model is configured.
	var completer domain.Completer
	if cfg.LLM.APIKey != "" {
		completer = openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
			Logger:            logger.Named("llm"),
		})
	} else {
		logger.Warn("llm.api_key is empty, reformulation and reranking use heuristics only")
	}

	// Reformulation
	vocab := vocabulary.Load(ctx, a.catalog, logger)
	inferrer := reformulate.NewCatalogInferrer(a.catalog, logger)
	heuristic := reformulate.NewHeuristic(vocab, inferrer)

	var cache reformulate.Cache
	if cfg.Search.CacheBackend == config.CacheRedis {
		cache = querycache.New(store, cfg.Vector.KeyPrefix, cfg.Search.CacheTTL(), metrics.CacheTotal, logger)
	} else {
		cache = reformulate.NewMemoryCache(cfg.Search.CacheMaxEntries, cfg.Search.CacheTTL())
	}
	reformulator := reformulate.NewCached(heuristic, inferrer, completer, cache, logger.Named("reformulate")).
		WithTTL(cfg.Search.CacheTTL()).
		WithAvailability(a.breaker)

	// Search cascade
	strategies := searchuc.DefaultStrategies(searchuc.Dependencies{
		Catalog:      a.catalog,
		Embeddings:   searchuc.NewEmbeddingSearch(a.vectors, a.catalog, a.breaker, logger),
		Reformulator: reformulator,
		Normalizer:   heuristic,
		Reranker:     searchuc.NewLLMReranker(completer, a.breaker, logger),
		Breaker:      a.breaker,
	}, logger.Named("search"))
	a.search = searchuc.New(strategies, logger.Named("search"))

	a.indexer = indexer.New(a.catalog, a.vectors, a.breaker, indexer.Config{
		BatchSize:      cfg.Indexing.BatchSize,
		MaxRetries:     cfg.Indexing.MaxRetries,
		InitialBackoff: time.Duration(cfg.Indexing.InitialBackoffMs) * time.Millisecond,
		MaxJitter:      time.Duration(cfg.Indexing.MaxJitterMs) * time.Millisecond,
	}, logger.Named("indexer"))

	a.health = healthuc.New(a.catalog, a.vectors, a.breaker, embedder, logger)

	logger.Info("Search service ready",
		zap.Strings("strategies", a.search.Strategies()),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("cache_backend", cfg.Search.CacheBackend),
		zap.Bool("llm", completer != nil),
	)
	return a, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.Config,
	store db.Store,
	budget *embeddinguc.BudgetTracker,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Vector.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil && cfg.Embedding.CacheTTLHours > 0 {
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		embedder = embcache.New(base, store, cfg.Vector.KeyPrefix, ttl, metrics.CacheTotal, logger)
	}

	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Vector.Dimensions),
	)
	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, checker, logger,
	).WithMaxBatchSize(cfg.Embedding.MaxBatchSize)
}

func buildVectorIndex(
	cfg config.Config,
	store db.Store,
	embedder domain.Embedder,
	logger *zap.Logger,
) (vectorIndex, error) {
	switch cfg.Vector.Backend {
	case config.BackendRedis, config.BackendValkey:
		return vectorindex.New(store, embedder, vectorindex.Config{
			IndexName:      cfg.Vector.IndexName,
			KeyPrefix:      cfg.Vector.KeyPrefix,
			Dimensions:     cfg.Vector.Dimensions,
			M:              cfg.Vector.HNSWM,
			EFConstruction: cfg.Vector.HNSWEFConstruct,
		}, logger.Named("vectors")), nil
	case config.BackendQdrant:
		x, err := qdrantTransport.New(
			cfg.Vector.QdrantAddr, cfg.Vector.Collection, cfg.Vector.Dimensions,
			embedder, logger.Named("vectors"),
		)
		if err != nil {
			return nil, fmt.Errorf("connect qdrant: %w", err)
		}
		return x, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}
