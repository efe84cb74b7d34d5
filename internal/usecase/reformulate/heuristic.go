// Package reformulate turns raw product queries into structured attributes.
package reformulate

import (
	"context"
	"strings"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/vocabulary"
)

const maxFuzzyTypeDistance = 2

// Normalized is the catalog-free reading of a query used by the non-AI strategies.
type Normalized struct {
	Text     string
	Keyword  string
	Fraction string
	Size     string
}

// Heuristic is the rule-based reformulator. Safe for concurrent use.
type Heuristic struct {
	vocab    *vocabulary.Vocabulary
	inferrer PrimaryTermInferrer
	known    []string
}

// NewHeuristic creates a heuristic reformulator. inferrer may be nil.
func NewHeuristic(vocab *vocabulary.Vocabulary, inferrer PrimaryTermInferrer) *Heuristic {
	if vocab == nil {
		vocab = vocabulary.Empty()
	}
	return &Heuristic{vocab: vocab, inferrer: inferrer, known: KnownProductTypes}
}

// Reformulate extracts brand, unit, size, fraction, normalized text and
// primary term. Blank input yields empty attributes.
func (h *Heuristic) Reformulate(ctx context.Context, raw string) domain.QueryAttributes {
	attrs := h.extract(raw)
	if attrs.Normalized == "" {
		return domain.QueryAttributes{}
	}
	attrs.PrimaryTerm = h.primaryTerm(ctx, raw, attrs.Normalized)
	return attrs
}

// Normalize returns normalized text, keyword, fraction and size without
// consulting the catalog.
func (h *Heuristic) Normalize(raw string) Normalized {
	attrs := h.extract(raw)
	return Normalized{
		Text:     attrs.Normalized,
		Keyword:  keywordOf(attrs.Normalized),
		Fraction: attrs.Fraction,
		Size:     attrs.Size,
	}
}

func (h *Heuristic) extract(raw string) domain.QueryAttributes {
	if strings.TrimSpace(raw) == "" {
		return domain.QueryAttributes{}
	}

	brands := h.vocab.Brands()
	brand := detectBrand(raw, brands)
	normalized := normalizeText(raw, brand)
	unit := detectUnit(normalized, brand)
	attrs := domain.QueryAttributes{
		Brand:      brand,
		Unit:       unit,
		Size:       detectSize(normalized, unit),
		Fraction:   detectFraction(normalized),
		Normalized: normalized,
	}
	if attrs.Brand == "" {
		attrs.Brand = detectBrand(normalized, brands)
	}
	return attrs.Sanitized()
}

func (h *Heuristic) primaryTerm(ctx context.Context, raw, normalized string) string {
	if h.inferrer != nil {
		if term := h.inferrer.Infer(ctx, raw); term != "" {
			return term
		}
	}

	tokens := cleanTokens(normalized)
	for _, tok := range tokens {
		if h.vocab.HasType(tok) {
			return tok
		}
	}
	if term := fuzzyMatch(tokens, h.vocab.Types()); term != "" {
		return term
	}

	for _, tok := range tokens {
		for _, k := range h.known {
			if tok == k {
				return k
			}
		}
	}
	return fuzzyMatch(tokens, h.known)
}

// fuzzyMatch returns the candidate closest to any token, if within reach.
func fuzzyMatch(tokens, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	best, bestDist := "", -1
	for _, tok := range tokens {
		cand, d := closest(tok, candidates)
		if d >= 0 && (bestDist < 0 || d < bestDist) {
			best, bestDist = cand, d
		}
	}
	if bestDist < 0 || bestDist > maxFuzzyTypeDistance {
		return ""
	}
	return best
}
