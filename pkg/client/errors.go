package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("api token is required (set GBIZ_API_TOKEN)")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// APIError represents a non-success response from the registry API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gbiz %s error (status %d): %s", e.Class, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gbiz %s error (status %d)", e.Class, e.StatusCode)
}

// retryableStatus is the fixed set of transient statuses worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// classifyStatus categorizes a non-success HTTP status for observability
// and backoff.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ErrorClassRateLimit
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classOf extracts the error class; anything that is not an APIError is a
// connection-level failure.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// isRetryable reports whether a failed attempt should be retried.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	// Timeouts and connection errors are always worth another attempt.
	return true
}
