package reformulate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

var (
	punctuationRe   = regexp.MustCompile(`["';,:\[\]{}()]`)
	unitRe          = regexp.MustCompile(`\b(pulgadas|plg|mm|milimetros|metros|mt|cm|centimetros|gal|galon)\b`)
	fractionRe      = regexp.MustCompile(`\b\d+/\d+\b`)
	sizeBeforeXRe   = regexp.MustCompile(`(?:^|[^\d/.])(\d+(?:\.\d+)?)\s*(?:x|por)\s*\d`)
	sizeAfterXRe    = regexp.MustCompile(`(?:^|[\s\d])(?:x|por)\s*(\d+(?:\.\d+)?)`)
	nonTokenCharsRe = regexp.MustCompile(`[^a-z0-9áéíóúñ/\-]`)
	lettersOnlyRe   = regexp.MustCompile(`[^a-záéíóúñ]`)
)

// normalizeText lowercases raw, expands unit abbreviations, strips bracket and
// quote punctuation, rewrites spelled numbers and spelled fractions.
// An abbreviation equal to brand is not expanded.
func normalizeText(raw, brand string) string {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	for i, tok := range tokens {
		tokens[i] = expandAbbreviation(tok, brand)
	}

	text := punctuationRe.ReplaceAllString(strings.Join(tokens, " "), " ")
	tokens = strings.Fields(text)
	for i, tok := range tokens {
		if n, ok := numberWords[tok]; ok {
			tokens[i] = n
		}
	}

	return strings.Join(joinSpelledFractions(tokens), " ")
}

func expandAbbreviation(tok, brand string) string {
	bare := strings.TrimSuffix(tok, ".")
	full, ok := unitAbbreviations[bare]
	if !ok {
		return tok
	}
	if brand != "" && strings.EqualFold(bare, brand) {
		return tok
	}
	return full
}

// joinSpelledFractions rewrites "<digits> <denominator word>" pairs as "n/d".
func joinSpelledFractions(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) && isDigits(tokens[i]) {
			if den, ok := denominators[tokens[i+1]]; ok {
				out = append(out, tokens[i]+"/"+den)
				i++
				continue
			}
		}
		out = append(out, tokens[i])
	}
	return out
}

// detectUnit returns the first canonical unit found in normalized text, or "".
// A unit token that is also the detected brand is skipped.
func detectUnit(normalized, brand string) string {
	for _, m := range unitRe.FindAllString(normalized, -1) {
		if brand != "" && strings.EqualFold(m, brand) {
			continue
		}
		return canonicalUnits[m]
	}
	return ""
}

// detectSize finds the number attached to unit, or failing that a number
// adjacent to a multiplication marker.
func detectSize(normalized, unit string) string {
	if unit != "" {
		re := regexp.MustCompile(`(?:^|[^\d/.])(\d+(?:\.\d+)?)\s+` + regexp.QuoteMeta(unit) + `\b`)
		if m := re.FindStringSubmatch(normalized); m != nil {
			return m[1]
		}
	}

	before := sizeBeforeXRe.FindStringSubmatchIndex(normalized)
	after := sizeAfterXRe.FindStringSubmatchIndex(normalized)
	switch {
	case before != nil && (after == nil || before[2] <= after[2]):
		return normalized[before[2]:before[3]]
	case after != nil:
		return normalized[after[2]:after[3]]
	}
	return ""
}

// detectFraction returns an explicit n/d fraction, or a spelled one
// tolerating one typo in the denominator word.
func detectFraction(normalized string) string {
	if m := fractionRe.FindString(normalized); m != "" {
		return m
	}

	tokens := strings.Fields(normalized)
	for i := 0; i+1 < len(tokens); i++ {
		num := spelledNumber(tokens[i])
		if num == "" {
			continue
		}
		word := lettersOnlyRe.ReplaceAllString(tokens[i+1], "")
		if word == "" {
			continue
		}
		cand, dist := closest(word, denominatorWords)
		if dist >= 0 && dist <= 1 {
			return num + "/" + denominators[cand]
		}
	}
	return ""
}

func spelledNumber(tok string) string {
	if isDigits(tok) {
		return tok
	}
	if n, ok := numberWords[tok]; ok {
		return n
	}
	return extraNumberWords[tok]
}

func detectBrand(text string, brands []string) string {
	upper := strings.ToUpper(text)
	for _, b := range brands {
		if strings.Contains(upper, b) {
			return b
		}
	}
	return ""
}

// cleanTokens strips every token of characters outside the product-type
// alphabet and keeps those longer than two runes.
func cleanTokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := nonTokenCharsRe.ReplaceAllString(f, "")
		if len([]rune(tok)) > 2 {
			out = append(out, tok)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// keywordOf picks the first meaningful word of normalized text.
func keywordOf(normalized string) string {
	for _, tok := range strings.Fields(normalized) {
		if len([]rune(tok)) <= 2 || isDigits(tok) || domain.IsValidFraction(tok) {
			continue
		}
		if _, stop := keywordStopWords[tok]; stop {
			continue
		}
		return tok
	}
	return ""
}
