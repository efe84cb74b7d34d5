// Package indexer embeds catalog products into the vector index in batches.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Defaults for Config.
const (
	DefaultBatchSize      = 20
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxJitter      = 500 * time.Millisecond
)

// Config tunes batching and retries.
type Config struct {
	BatchSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxJitter      time.Duration
}

// DefaultConfig returns batches of 20 with three retries starting at 2s.
func DefaultConfig() Config {
	return Config{
		BatchSize:      DefaultBatchSize,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxJitter:      DefaultMaxJitter,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	return c
}

// Report summarizes one indexing run.
type Report struct {
	RunID         string `json:"run_id"`
	Products      int    `json:"products"`
	Batches       int    `json:"batches"`
	Indexed       int    `json:"indexed"`
	FailedBatches int    `json:"failed_batches"`
	Aborted       bool   `json:"aborted"`
}

// Service indexes the catalog. Runs are serialized; a run started while
// another is in progress fails with domain.ErrIndexingInProgress.
type Service struct {
	catalog Catalog
	index   DocumentIndex
	avail   Availability
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(limit time.Duration) time.Duration
	running sync.Mutex
	logger  *zap.Logger
}

// New creates an indexer.
func New(catalog Catalog, index DocumentIndex, avail Availability, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog: catalog,
		index:   index,
		avail:   avail,
		cfg:     cfg.withDefaults(),
		sleep:   sleepContext,
		jitter:  randomJitter,
		logger:  logger,
	}
}

// WithSleeper replaces the backoff sleep and jitter source (tests).
func (s *Service) WithSleeper(
	sleep func(ctx context.Context, d time.Duration) error,
	jitter func(limit time.Duration) time.Duration,
) *Service {
	s.sleep = sleep
	s.jitter = jitter
	return s
}

// IndexAll embeds every catalog product. Failed batches are logged and
// counted, never returned; a quota failure stops the run. Errors are
// returned only when the catalog cannot be read or ctx is done.
func (s *Service) IndexAll(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		return Report{}, domain.ErrIndexingInProgress
	}
	defer s.running.Unlock()

	report := Report{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", report.RunID))

	products, err := s.catalog.FindAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load catalog: %w", err)
	}
	report.Products = len(products)
	if len(products) == 0 {
		log.Info("catalog empty, nothing to index")
		return report, nil
	}

	start := time.Now()
	for i := 0; i < len(products); i += s.cfg.BatchSize {
		batch := products[i:min(i+s.cfg.BatchSize, len(products))]
		report.Batches++
		docs := make([]domain.Document, len(batch))
		for j, p := range batch {
			docs[j] = ToDocument(p)
		}

		err := s.addWithRetry(ctx, docs, log.With(zap.Int("batch", report.Batches)))
		switch {
		case err == nil:
			report.Indexed += len(docs)
			s.avail.RecordSuccess()
			metrics.IndexBatchesTotal.WithLabelValues("indexed").Inc()
		case ctx.Err() != nil:
			return report, fmt.Errorf("indexing interrupted: %w", ctx.Err())
		case domain.IsQuotaError(err):
			report.Aborted = true
			s.avail.RecordFailure(err)
			metrics.IndexBatchesTotal.WithLabelValues("aborted").Inc()
			log.Error("quota exhausted, aborting indexing run",
				zap.Int("batch", report.Batches), zap.Int("indexed", report.Indexed), zap.Error(err))
			return report, nil
		default:
			report.FailedBatches++
			s.avail.RecordFailure(err)
			metrics.IndexBatchesTotal.WithLabelValues("failed").Inc()
			log.Warn("batch failed after retries, continuing",
				zap.Int("batch", report.Batches), zap.Int("size", len(docs)), zap.Error(err))
		}
	}

	log.Info("indexing finished",
		zap.Int("products", report.Products),
		zap.Int("batches", report.Batches),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed_batches", report.FailedBatches),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// addWithRetry submits docs, retrying transient failures with exponential
// backoff plus jitter. Quota failures are returned without retrying.
func (s *Service) addWithRetry(ctx context.Context, docs []domain.Document, log *zap.Logger) error {
	backoff := s.cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		err := s.index.Add(ctx, docs)
		if err == nil {
			return nil
		}
		if domain.IsQuotaError(err) || attempt >= s.cfg.MaxRetries || ctx.Err() != nil {
			return err
		}

		wait := backoff + s.jitter(s.cfg.MaxJitter)
		metrics.IndexRetriesTotal.Inc()
		log.Info("batch failed, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))
		if serr := s.sleep(ctx, wait); serr != nil {
			return serr
		}
		backoff *= 2
	}
}

// IndexOne embeds a single product. Unlike IndexAll it returns the failure
// and does not retry.
func (s *Service) IndexOne(ctx context.Context, id int64) error {
	p, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find product %d: %w", id, err)
	}

	if err := s.index.Add(ctx, []domain.Document{ToDocument(p)}); err != nil {
		s.avail.RecordFailure(err)
		s.logger.Warn("product indexing failed", zap.Int64("product_id", id), zap.Error(err))
		return fmt.Errorf("%w: product %d: %w", domain.ErrIndexing, id, err)
	}
	s.avail.RecordSuccess()
	s.logger.Info("product indexed", zap.Int64("product_id", id))
	return nil
}

// StartBackground runs IndexAll in a goroutine. The returned channel is
// closed when the run ends. Failures are logged only.
func (s *Service) StartBackground(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, err := s.IndexAll(ctx)
		switch {
		case errors.Is(err, domain.ErrIndexingInProgress):
			s.logger.Info("startup indexing skipped, run already in progress")
		case err != nil:
			s.logger.Error("startup indexing failed", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}()
	return done
}

// ToDocument converts a product into its index document. Lower-cased name
// and description are appended for recall.
func ToDocument(p domain.Product) domain.Document {
	return domain.Document{
		ID: p.DocumentID(),
		Content: fmt.Sprintf("Nombre: %s. Descripción: %s. Categoría: %s. %s %s",
			p.Name, p.Description, p.Category,
			strings.ToLower(p.Name), strings.ToLower(p.Description)),
		Metadata: map[string]string{
			"id":       strconv.FormatInt(p.ID, 10),
			"name":     p.Name,
			"category": p.Category,
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit) + 1))
}
