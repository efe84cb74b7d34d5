package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Product is a catalog item. The catalog owns it; the search core only reads it.
type Product struct {
	ID          int64
	Name        string
	Description string // empty when absent
	Category    string // empty when absent
	Stock       *int   // nil when the catalog does not track stock
}

// InStock reports whether stock is known and positive.
func (p Product) InStock() bool {
	return p.Stock != nil && *p.Stock > 0
}

// DocumentID is the vector store identifier of the product.
func (p Product) DocumentID() string {
	return strconv.FormatInt(p.ID, 10)
}

// ParseProductID converts a vector store document id back to a product id.
func ParseProductID(id string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse product id %q: %w", id, err)
	}
	return v, nil
}

// Page is one page of a catalog text search plus the total match count.
type Page struct {
	Products []Product
	Total    int64
}
