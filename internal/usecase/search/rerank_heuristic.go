package search

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/reformulate"
)

// Heuristic scoring weights.
const (
	scoreKeyword       = 10
	scoreKeywordInName = 5
	scoreFraction      = 15
	scoreSize          = 8
	scoreInStock       = 2
)

// Score rates how well p matches a normalized query. Scores are additive
// and unbounded.
func Score(p domain.Product, n reformulate.Normalized) float64 {
	name := strings.ToLower(p.Name)
	text := name + " " + strings.ToLower(p.Description)

	var score float64
	if kw := strings.ToLower(n.Keyword); kw != "" && strings.Contains(text, kw) {
		score += scoreKeyword
		if strings.Contains(name, kw) {
			score += scoreKeywordInName
		}
	}
	if n.Fraction != "" && strings.Contains(text, strings.ToLower(n.Fraction)) {
		score += scoreFraction
	}
	if n.Size != "" && strings.Contains(text, strings.ToLower(n.Size)) {
		score += scoreSize
	}
	if p.InStock() {
		score += scoreInStock
	}
	return score
}

// RerankHeuristic orders candidates by Score, keeping input order on ties,
// and returns at most limit of them.
func RerankHeuristic(candidates []domain.Product, n reformulate.Normalized, limit int) []domain.Product {
	type scored struct {
		p     domain.Product
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, p := range candidates {
		ranked[i] = scored{p: p, score: Score(p, n)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if limit < 0 {
		limit = 0
	}
	out := make([]domain.Product, 0, min(limit, len(ranked)))
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.p)
	}
	return out
}
