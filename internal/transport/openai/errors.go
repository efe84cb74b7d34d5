package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

const codeInsufficientQuota = "insufficient_quota"

// mapAPIError converts a client error into a domain sentinel.
// Quota exhaustion and rate limits get their own sentinels; everything else
// is wrapped with fallback. The provider message is kept in the text.
func mapAPIError(kind string, err error, fallback error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		sentinel := classify(apiErr.HTTPStatusCode, code+" "+apiErr.Type+" "+apiErr.Message, fallback)
		return fmt.Errorf("%s API error %d: %s: %w", kind, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		sentinel := classify(reqErr.HTTPStatusCode, detail, fallback)
		return fmt.Errorf("%s API error %d: %s: %w", kind, reqErr.HTTPStatusCode, detail, sentinel)
	}

	return fmt.Errorf("%s request failed: %w: %w", kind, fallback, err)
}

func classify(status int, text string, fallback error) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, codeInsufficientQuota), strings.Contains(lower, "quota"):
		return domain.ErrQuotaExceeded
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return fallback
	}
}

// extractDetail reads the "detail" field of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
