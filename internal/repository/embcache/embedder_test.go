package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	err        error
	calls      []string
	batchCalls [][]string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls = append(m.calls, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 4, TotalTokens: 4}, nil
}

type mockBatchEmbedder struct {
	mockEmbedder
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls = append(m.batchCalls, texts)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: 4 * len(texts)}, nil
}

type memoryKV struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"kind", "result"})
}

// --- Tests ---

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{}
	kv := newMemoryKV()
	counter := newCounter()
	ce := New(inner, kv, "catalogsearch:", time.Hour, counter, zap.NewNop())
	ctx := context.Background()

	first, err := ce.Embed(ctx, "tornillo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 4 {
		t.Errorf("miss must report provider tokens, got %d", first.TotalTokens)
	}

	second, err := ce.Embed(ctx, "tornillo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit must report zero tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 1 || second.Embedding[0] != 8 {
		t.Errorf("unexpected cached vector: %v", second.Embedding)
	}
	if len(inner.calls) != 1 {
		t.Errorf("expected 1 provider call, got %d", len(inner.calls))
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("embedding", "hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("embedding", "miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	for key, ttl := range kv.ttls {
		if ttl != time.Hour {
			t.Errorf("key %s stored with ttl %v", key, ttl)
		}
	}
}

func TestEmbed_InnerError(t *testing.T) {
	boom := errors.New("boom")
	ce := New(&mockEmbedder{err: boom}, newMemoryKV(), "", 0, nil, zap.NewNop())
	if _, err := ce.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	inner := &mockEmbedder{}
	ce := New(inner, kv, "", 0, nil, zap.NewNop())

	res, err := ce.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 1 || len(inner.calls) != 1 {
		t.Errorf("expected provider result, got %v after %d calls", res.Embedding, len(inner.calls))
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	kv := newMemoryKV()
	inner := &mockEmbedder{}
	ce := New(inner, kv, "", 0, nil, zap.NewNop())
	kv.data[ce.cacheKey("abc")] = []byte{1, 2, 3}

	if _, err := ce.Embed(context.Background(), "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 1 {
		t.Errorf("expected provider call for corrupt entry, got %d", len(inner.calls))
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	inner := &mockBatchEmbedder{}
	kv := newMemoryKV()
	ce := New(inner, kv, "p:", 0, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "bb"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batchCalls) != 1 {
		t.Fatalf("expected 1 batch call, got %d", len(inner.batchCalls))
	}
	if got := inner.batchCalls[0]; len(got) != 2 || got[0] != "a" || got[1] != "ccc" {
		t.Errorf("expected only misses sent, got %v", got)
	}
	for i, want := range []float32{1, 2, 3} {
		if res.Embeddings[i][0] != want {
			t.Errorf("embedding[%d] = %v, want %v", i, res.Embeddings[i], want)
		}
	}
	if res.TotalTokens != 8 {
		t.Errorf("expected tokens of the misses only, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_AllCached(t *testing.T) {
	inner := &mockBatchEmbedder{}
	ce := New(inner, newMemoryKV(), "", 0, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := ce.BatchEmbed(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ce.BatchEmbed(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batchCalls) != 1 {
		t.Errorf("expected cached second batch, got %d calls", len(inner.batchCalls))
	}
	if res.TotalTokens != 0 {
		t.Errorf("expected zero tokens, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_FallsBackToSingleCalls(t *testing.T) {
	inner := &mockEmbedder{}
	ce := New(inner, newMemoryKV(), "", 0, nil, zap.NewNop())

	if _, err := ce.BatchEmbed(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 2 {
		t.Errorf("expected 2 single calls, got %d", len(inner.calls))
	}
}

func TestBatchEmbed_Error(t *testing.T) {
	boom := errors.New("quota")
	inner := &mockBatchEmbedder{mockEmbedder{err: boom}}
	ce := New(inner, newMemoryKV(), "", 0, nil, zap.NewNop())

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestVectorCacheBytesRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("round trip mismatch: %v vs %v", in, out)
		}
	}
}
