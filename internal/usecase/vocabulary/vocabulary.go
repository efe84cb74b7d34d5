// Package vocabulary mines brand and product-type tokens from the catalog.
package vocabulary

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// MinOccurrences is how many distinct products must mention a token.
const MinOccurrences = 3

const minTokenLen = 3

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	brandRe    = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ]+$`)
	typeTokRe  = regexp.MustCompile(`[a-zA-ZÁÉÍÓÚÑáéíóúñ0-9/\-]+`)
	typeTrimCh = "/-"
)

// Vocabulary holds the mined brand and product-type tokens. Read-only after Build.
type Vocabulary struct {
	brands    []string
	types     map[string]struct{}
	typesList []string
}

// Empty returns a vocabulary with no brands and no types.
func Empty() *Vocabulary {
	return &Vocabulary{types: map[string]struct{}{}}
}

// Brands returns upper-case brand tokens, most frequent first, ties in lexical order.
func (v *Vocabulary) Brands() []string {
	return v.brands
}

// Types returns lower-case product-type tokens in lexical order.
func (v *Vocabulary) Types() []string {
	return v.typesList
}

// HasType reports whether token is a mined product type.
func (v *Vocabulary) HasType(token string) bool {
	_, ok := v.types[token]
	return ok
}

// Size returns the number of brands and types.
func (v *Vocabulary) Size() (brands, types int) {
	return len(v.brands), len(v.typesList)
}

// Build mines a vocabulary from the catalog.
func Build(products []domain.Product) *Vocabulary {
	brandCounts := make(map[string]int)
	typeCounts := make(map[string]int)

	for _, p := range products {
		for tok := range brandTokens(p.Name) {
			brandCounts[tok]++
		}
		for tok := range typeTokens(p.Name + " " + p.Description) {
			typeCounts[tok]++
		}
	}

	v := Empty()
	v.brands = frequent(brandCounts, true)
	v.typesList = frequent(typeCounts, false)
	for _, t := range v.typesList {
		v.types[t] = struct{}{}
	}
	return v
}

type catalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
}

// Load scans the catalog and builds a vocabulary. A catalog failure yields an
// empty vocabulary; it is logged and never returned.
func Load(ctx context.Context, c catalog, logger *zap.Logger) *Vocabulary {
	products, err := c.FindAll(ctx)
	if err != nil {
		logger.Warn("Vocabulary mining failed, continuing with empty vocabulary", zap.Error(err))
		return Empty()
	}
	v := Build(products)
	brands, types := v.Size()
	logger.Info("Vocabulary mined",
		zap.Int("products", len(products)),
		zap.Int("brands", brands),
		zap.Int("product_types", types),
	)
	return v
}

// brandTokens returns the distinct all-upper-case words of at least three letters.
func brandTokens(name string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(name, -1) {
		if utf8.RuneCountInString(w) >= minTokenLen && brandRe.MatchString(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// typeTokens returns the distinct lower-cased alphanumeric tokens of at least three characters.
// Slashes and hyphens are kept inside a token, so "5/8" and "anti-oxido" survive.
func typeTokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, raw := range typeTokRe.FindAllString(text, -1) {
		tok := strings.ToLower(strings.Trim(raw, typeTrimCh))
		if utf8.RuneCountInString(tok) >= minTokenLen {
			out[tok] = struct{}{}
		}
	}
	return out
}

// frequent keeps tokens seen in at least MinOccurrences products.
// byFrequency orders by descending count; otherwise lexical order is used.
func frequent(counts map[string]int, byFrequency bool) []string {
	out := make([]string, 0, len(counts))
	for tok, n := range counts {
		if n >= MinOccurrences {
			out = append(out, tok)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if byFrequency && counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
