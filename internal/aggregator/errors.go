package aggregator

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotConfigured = errors.New("aggregator: client not configured")

	// ErrRateLimited is returned for HTTP 429.
	ErrRateLimited = errors.New("aggregator: rate limit exceeded")

	// ErrUnauthorized is returned when the client credentials or token are rejected.
	ErrUnauthorized = errors.New("aggregator: unauthorized")

	// ErrConsentExpired is returned when the end-user agreement behind an
	// account is expired, revoked or otherwise unusable. It needs the user to
	// reconnect the bank.
	ErrConsentExpired = errors.New("aggregator: consent expired or invalid")

	ErrNotFound = errors.New("aggregator: resource not found")

	ErrUpstream = errors.New("aggregator: upstream error")

	// ErrNetwork is returned when no HTTP response was received.
	ErrNetwork = errors.New("aggregator: network error")

	// ErrCircuitOpen is returned by ResilientClient while the breaker is open.
	ErrCircuitOpen = errors.New("aggregator: circuit breaker open")
)

// APIError carries what is known about a failed upstream call. Kind is one
// of the sentinel errors above and is what errors.Is matches against.
type APIError struct {
	Op         string
	StatusCode int
	Summary    string
	Detail     string
	Kind       error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Detail)
	}
	msg := e.Summary
	if e.Detail != "" && e.Detail != e.Summary {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s: %s (status=%d): %s", e.Kind, e.Op, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// IsTransient reports whether the same call might succeed later without
// user action.
func (e *APIError) IsTransient() bool {
	switch e.Kind {
	case ErrRateLimited, ErrNetwork, ErrUpstream:
		return true
	}
	return false
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden, status == http.StatusConflict:
		return ErrConsentExpired
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUpstream
	}
}

// Classify returns a short label for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConsentExpired):
		return "consent_expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "unknown"
	}
}
