package catalogsearch

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrRateLimited            = domain.ErrRateLimited
	ErrQuotaExceeded          = domain.ErrQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrIndexingInProgress     = domain.ErrIndexingInProgress
)

// ErrUnauthorized is returned when the API key is missing or rejected.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalogsearch: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the response code to a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return ErrNotFound
	case "bad_request":
		return ErrInvalidQuery
	case "unauthorized":
		return ErrUnauthorized
	case "quota_exceeded":
		return ErrQuotaExceeded
	case "rate_limited":
		return ErrRateLimited
	case "provider_error":
		return ErrEmbeddingProviderError
	case "indexing_in_progress":
		return ErrIndexingInProgress
	default:
		return nil
	}
}
