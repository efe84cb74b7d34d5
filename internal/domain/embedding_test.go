package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	calls []string
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.calls = append(s.calls, text)
	if s.err != nil {
		return EmbeddingResult{}, s.err
	}
	return EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 1, TotalTokens: 2}, nil
}

type stubBatchEmbedder struct {
	stubEmbedder
	batches [][]string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batches = append(s.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func TestBatchFallback_AggregatesUsage(t *testing.T) {
	e := &stubEmbedder{}
	res, err := BatchFallback(context.Background(), e, []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[2][0] != 3 {
		t.Errorf("expected order preserved, got %v", res.Embeddings)
	}
	if res.PromptTokens != 3 || res.TotalTokens != 6 {
		t.Errorf("unexpected usage: prompt=%d total=%d", res.PromptTokens, res.TotalTokens)
	}
}

func TestBatchFallback_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	e := &stubEmbedder{err: boom}
	_, err := BatchFallback(context.Background(), e, []string{"a", "b"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if len(e.calls) != 1 {
		t.Errorf("expected 1 call before abort, got %d", len(e.calls))
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	e := &stubBatchEmbedder{}
	res, err := EmbedAll(context.Background(), e, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.batches) != 1 {
		t.Fatalf("expected 1 batch call, got %d", len(e.batches))
	}
	if len(e.calls) != 0 {
		t.Errorf("expected no single calls, got %d", len(e.calls))
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedAll_FallsBackToSingle(t *testing.T) {
	e := &stubEmbedder{}
	if _, err := EmbedAll(context.Background(), e, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.calls) != 2 {
		t.Errorf("expected 2 single calls, got %d", len(e.calls))
	}
}
