package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a product id that the catalog does not know.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidQuery signals a blank or malformed search request.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted provider quota or token budget.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLanguageModelError signals a language model provider failure.
	ErrLanguageModelError = errors.New("language model error")
	// ErrMalformedResponse signals a provider response that could not be interpreted.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrVectorStore signals a vector store failure.
	ErrVectorStore = errors.New("vector store error")
	// ErrIndexing signals a product that could not be indexed.
	ErrIndexing = errors.New("indexing failed")
	// ErrIndexingInProgress signals a reindex requested while another run is active.
	ErrIndexingInProgress = errors.New("indexing already in progress")
)

// IsQuotaError reports whether err means the provider quota is gone.
// Some providers only say so in the message text, so the check also
// matches a case-insensitive "quota" substring.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "quota")
}
