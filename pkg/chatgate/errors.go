package chatgate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned for a provider not in the registry
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrStoreUnavailable is returned when no store is configured
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidConfig is returned for a malformed provider registry
	ErrInvalidConfig = errors.New("invalid config")
)

// ErrorKind classifies a provider failure. Kinds are assigned by each
// provider adapter from structured API responses, not by sniffing error text.
type ErrorKind string

const (
	// KindRateLimited means the vendor throttled the request
	KindRateLimited ErrorKind = "rate_limited"
	// KindAuthFailed means credentials were rejected
	KindAuthFailed ErrorKind = "auth_failed"
	// KindOverloaded means the vendor is temporarily over capacity
	KindOverloaded ErrorKind = "overloaded"
	// KindBadRequest means the vendor rejected the request shape or content
	KindBadRequest ErrorKind = "bad_request"
	// KindUnknown covers everything else (network faults, malformed replies)
	KindUnknown ErrorKind = "unknown"
)

// ProviderError is a classified failure from an external provider call.
type ProviderError struct {
	Provider ProviderID
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a classified provider failure.
func NewProviderError(provider ProviderID, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func asProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
