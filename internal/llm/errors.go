package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error returned by a model provider.
type APIError struct {
	// Provider is the name of the provider (e.g., "openai", "anthropic").
	Provider string
	// StatusCode is the HTTP status code returned by the API. Zero means no
	// HTTP response was received (a network-level failure).
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API, if any.
	Type string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error may succeed on retry: rate limiting
// (429), server-side errors (5xx), and network failures (no status code).
// Bad credentials and malformed requests are permanent.
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// IsTransient reports whether err is a provider error eligible for retry.
// Errors that are not *APIError are treated as permanent.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}

// AsAPIError extracts an *APIError from err's chain, if present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
