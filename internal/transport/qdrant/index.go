// Package qdrant is the Qdrant-backed vector index, selected with vector.backend: qdrant.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// Payload keys stored with each point.
const (
	payloadContent  = "content"
	payloadID       = "id"
	payloadName     = "name"
	payloadCategory = "category"
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Index embeds documents and queries and keeps vectors in a Qdrant collection.
type Index struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dimensions  int
	embedder    domain.Embedder
	logger      *zap.Logger
}

// New connects to Qdrant over gRPC at addr.
func New(addr, collection string, dimensions int, embedder domain.Embedder, logger *zap.Logger) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	x := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, dimensions, embedder, logger)
	x.conn = conn
	return x, nil
}

// NewWithClients builds an index over existing gRPC clients.
func NewWithClients(
	points pointsAPI, collections collectionsAPI,
	collection string, dimensions int,
	embedder domain.Embedder, logger *zap.Logger,
) *Index {
	return &Index{
		points:      points,
		collections: collections,
		collection:  collection,
		dimensions:  dimensions,
		embedder:    embedder,
		logger:      logger,
	}
}

// Close closes the gRPC connection, if this index owns one.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureIndex creates the collection with cosine distance when it is missing.
func (x *Index) EnsureIndex(ctx context.Context) error {
	exists, err := x.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(x.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", domain.ErrVectorStore, x.collection, err)
	}
	x.logger.Info("Qdrant collection created",
		zap.String("collection", x.collection),
		zap.Int("dimensions", x.dimensions),
	)
	return nil
}

// Reset deletes and recreates the collection.
func (x *Index) Reset(ctx context.Context) error {
	exists, err := x.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if _, err := x.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: x.collection}); err != nil {
			return fmt.Errorf("%w: delete collection %s: %w", domain.ErrVectorStore, x.collection, err)
		}
	}
	return x.EnsureIndex(ctx)
}

func (x *Index) collectionExists(ctx context.Context) (bool, error) {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("%w: list collections: %w", domain.ErrVectorStore, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return true, nil
		}
	}
	return false, nil
}

// Add embeds docs in one batch and upserts them as points keyed by product id.
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

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		id, err := strconv.ParseUint(d.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: document id %q is not numeric", domain.ErrIndexing, d.ID)
		}
		payload := map[string]*pb.Value{
			payloadContent: stringValue(d.Content),
			payloadID:      stringValue(d.ID),
		}
		for _, k := range []string{payloadName, payloadCategory} {
			if v := d.Metadata[k]; v != "" {
				payload[k] = stringValue(v)
			}
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: id}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: res.Embeddings[i]}},
			},
			Payload: payload,
		}
	}

	wait := true
	if _, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", domain.ErrVectorStore, len(points), err)
	}
	return nil
}

// SimilaritySearch returns up to topK hits with cosine similarity >= threshold.
func (x *Index) SimilaritySearch(ctx context.Context, text string, topK int, threshold float64) ([]domain.Hit, error) {
	emb, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scoreThreshold := float32(threshold)
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         emb.Embedding,
		Limit:          uint64(max(topK, 1)),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrVectorStore, x.collection, err)
	}

	hits := make([]domain.Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		id := r.GetPayload()[payloadID].GetStringValue()
		if id == "" {
			id = strconv.FormatUint(r.GetId().GetNum(), 10)
		}
		hits = append(hits, domain.Hit{ID: id, Score: float64(r.GetScore())})
	}
	return hits, nil
}

// Ping checks that Qdrant answers.
func (x *Index) Ping(ctx context.Context) error {
	if _, err := x.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVectorStore, err)
	}
	return nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
