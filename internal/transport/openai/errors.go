package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
)

// parseAPIError extracts a human-readable error from the API response and wraps it with sentinel.
// 429 additionally wraps domain.ErrRateLimited; 429 and 5xx are marked transient for the retry loop.
func parseAPIError(kind string, err error, sentinel error) error {
	status, detail := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		detail = apiErr.Message
	default:
		wrapped := fmt.Errorf("%s request failed: %w: %w", kind, sentinel, err)
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(wrapped, 0)
		}
		return wrapped
	}

	var wrapped error
	if status == http.StatusTooManyRequests {
		wrapped = fmt.Errorf("%s API error %d: %s: %w: %w", kind, status, detail, sentinel, domain.ErrRateLimited)
	} else {
		wrapped = fmt.Errorf("%s API error %d: %s: %w", kind, status, detail, sentinel)
	}
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(wrapped, status)
	}
	return wrapped
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
