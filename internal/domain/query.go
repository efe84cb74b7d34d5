package domain

import "regexp"

var fractionRe = regexp.MustCompile(`^\d+/\d+$`)

// QueryAttributes is the structured reading of a raw product query.
// Empty strings mean "not detected"; Normalized may be empty too.
type QueryAttributes struct {
	Brand       string `json:"brand,omitempty"`
	Fraction    string `json:"fraction,omitempty"`
	Size        string `json:"size,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Normalized  string `json:"normalized"`
	PrimaryTerm string `json:"primary_term,omitempty"`
}

// IsValidFraction reports whether s has the digits/digits form.
func IsValidFraction(s string) bool {
	return fractionRe.MatchString(s)
}

// Sanitized drops a fraction that does not have the digits/digits form.
func (a QueryAttributes) Sanitized() QueryAttributes {
	if a.Fraction != "" && !IsValidFraction(a.Fraction) {
		a.Fraction = ""
	}
	return a
}

// IsEmpty reports whether nothing was extracted.
func (a QueryAttributes) IsEmpty() bool {
	return a == QueryAttributes{}
}
