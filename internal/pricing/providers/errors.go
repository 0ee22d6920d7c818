package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCategory is the normalized failure taxonomy for spot feeds.
type ErrorCategory string

const (
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData covers malformed payloads and non-positive prices.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication covers missing or rejected credentials.
	ErrorAuthentication ErrorCategory = "authentication"

	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorNotFound means the feed does not quote the requested symbol.
	ErrorNotFound ErrorCategory = "not_found"

	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCircuitOpen means the provider was skipped without being called.
	ErrorCircuitOpen ErrorCategory = "circuit_open"

	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps a feed failure with its normalized category.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a normalized provider error.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from err. Deadline and network errors that
// escaped a provider unwrapped are classified as timeout and outage.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorProviderOutage
	}
	return ErrorInternal
}

var (
	ErrMissingCredential  = errors.New("missing provider credential")
	ErrAllProvidersFailed = errors.New("all providers failed")
)
