package search

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

var indexSplitRe = regexp.MustCompile(`[,\s]+`)

// LLMReranker asks a language model to pick the most relevant candidates.
type LLMReranker struct {
	llm    domain.Completer
	avail  Availability
	logger *zap.Logger
}

// NewLLMReranker creates a model-backed reranker. llm may be nil, in which
// case candidates are only truncated.
func NewLLMReranker(llm domain.Completer, avail Availability, logger *zap.Logger) *LLMReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMReranker{llm: llm, avail: avail, logger: logger}
}

// Rerank returns at most limit candidates in the order the model ranked
// them. Model failures or unusable replies mark AI unavailable and fall
// back to the first limit candidates.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []domain.Product, limit int) []domain.Product {
	if len(candidates) <= limit {
		return candidates
	}
	if r.llm == nil {
		return candidates[:limit]
	}

	reply, err := r.llm.Complete(ctx, domain.Prompt{User: rerankPrompt(query, candidates, limit)})
	if err != nil {
		r.logger.Warn("llm rerank failed", zap.String("query", query), zap.Error(err))
		r.avail.RecordFailure(err)
		return candidates[:limit]
	}

	picked := parseIndices(reply, len(candidates), limit)
	if len(picked) == 0 {
		err = fmt.Errorf("%w: no usable indices in %q", domain.ErrMalformedResponse, reply)
		r.logger.Warn("llm rerank reply unusable", zap.String("query", query), zap.Error(err))
		r.avail.RecordFailure(err)
		return candidates[:limit]
	}
	r.avail.RecordSuccess()

	out := make([]domain.Product, len(picked))
	for i, idx := range picked {
		out[i] = candidates[idx]
	}
	return out
}

func rerankPrompt(query string, candidates []domain.Product, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consulta: \"%s\"\nProductos:\n", query)
	for i, p := range candidates {
		fmt.Fprintf(&b, "[%d] %s - %s\n", i, p.Name, p.Description)
	}
	fmt.Fprintf(&b, "Selecciona los %d más relevantes.\n", limit)
	b.WriteString("Responde solo con números separados por comas: 0,3,7")
	return b.String()
}

// parseIndices reads distinct in-range indices in reply order, at most limit.
func parseIndices(reply string, n, limit int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, tok := range indexSplitRe.Split(strings.TrimSpace(reply), -1) {
		if tok == "" || strings.IndexFunc(tok, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= n {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
		if len(out) == limit {
			break
		}
	}
	return out
}
