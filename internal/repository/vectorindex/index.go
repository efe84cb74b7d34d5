// Package vectorindex stores product embeddings in a Redis-compatible server
// with the search module and answers KNN similarity queries.
package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// Hash field names of an indexed product.
const (
	FieldContent  = "content"
	FieldID       = "id"
	FieldName     = "name"
	FieldCategory = "category"
	FieldVector   = "__vector"
)

// Config describes the FT index.
type Config struct {
	IndexName      string
	KeyPrefix      string // e.g. "catalogsearch:"
	Dimensions     int
	M              int
	EFConstruction int
}

type store interface {
	db.Pinger
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Index embeds documents and queries and keeps vectors in FT hashes.
type Index struct {
	store    store
	embedder domain.Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a vector index.
func New(s store, embedder domain.Embedder, cfg Config, logger *zap.Logger) *Index {
	if cfg.IndexName == "" {
		cfg.IndexName = "products-idx"
	}
	return &Index{store: s, embedder: embedder, cfg: cfg, logger: logger}
}

func (x *Index) docPrefix() string {
	return x.cfg.KeyPrefix + "product:"
}

func (x *Index) definition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(x.cfg.IndexName).
		Prefix(x.docPrefix()).
		Text(FieldContent).
		Tag(FieldCategory).
		VectorHNSW(FieldVector, x.cfg.Dimensions, db.DistanceCosine, x.cfg.M, x.cfg.EFConstruction).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the FT index when it does not exist yet.
func (x *Index) EnsureIndex(ctx context.Context) error {
	exists, err := x.store.IndexExists(ctx, x.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("%w: probe index %s: %w", domain.ErrVectorStore, x.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def, err := x.definition()
	if err != nil {
		return err
	}
	if err := x.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index %s: %w", domain.ErrVectorStore, x.cfg.IndexName, err)
	}
	x.logger.Info("Vector index created",
		zap.String("index", x.cfg.IndexName),
		zap.Int("dimensions", x.cfg.Dimensions),
	)
	return nil
}

// Reset drops and recreates the FT index. Stored hashes are overwritten by the next run.
func (x *Index) Reset(ctx context.Context) error {
	if err := x.store.DropIndex(ctx, x.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%w: drop index %s: %w", domain.ErrVectorStore, x.cfg.IndexName, err)
	}
	return x.EnsureIndex(ctx)
}

// Add embeds docs in one batch and stores them. Embedding errors are
// returned unchanged in the chain so quota failures stay detectable.
func (x *Index) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	res, err := domain.EmbedAll(ctx, x.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed %d documents: %w", len(docs), err)
	}
	if len(res.Embeddings) != len(docs) {
		return fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrMalformedResponse, len(docs), len(res.Embeddings))
	}

	items := make([]db.HashSetItem, len(docs))
	for i, d := range docs {
		if err := x.checkDimensions(res.Embeddings[i]); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		fields := map[string]string{
			FieldContent: d.Content,
			FieldID:      d.ID,
			FieldVector:  encodeVector(res.Embeddings[i]),
		}
		for _, k := range []string{FieldName, FieldCategory} {
			if v := d.Metadata[k]; v != "" {
				fields[k] = v
			}
		}
		items[i] = db.HashSetItem{Key: x.docPrefix() + d.ID, Fields: fields}
	}

	if err := x.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: store %d documents: %w", domain.ErrVectorStore, len(items), err)
	}
	return nil
}

// SimilaritySearch returns up to topK hits with similarity >= threshold, best first.
func (x *Index) SimilaritySearch(ctx context.Context, text string, topK int, threshold float64) ([]domain.Hit, error) {
	emb, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := x.checkDimensions(emb.Embedding); err != nil {
		return nil, err
	}

	sr, err := x.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    x.cfg.IndexName,
		VectorField:  FieldVector,
		Vector:       emb.Embedding,
		K:            topK,
		ReturnFields: []string{FieldID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn %s: %w", domain.ErrVectorStore, x.cfg.IndexName, err)
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < threshold {
			continue
		}
		id := e.Fields[FieldID]
		if id == "" {
			x.logger.Debug("Vector hit without id", zap.String("key", e.Key))
			continue
		}
		hits = append(hits, domain.Hit{ID: id, Score: e.Score})
	}
	return hits, nil
}

// Ping checks the vector store connection.
func (x *Index) Ping(ctx context.Context) error {
	if err := x.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorStore, err)
	}
	return nil
}

func (x *Index) checkDimensions(vec []float32) error {
	if x.cfg.Dimensions > 0 && len(vec) != x.cfg.Dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
			domain.ErrMalformedResponse, len(vec), x.cfg.Dimensions)
	}
	return nil
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
