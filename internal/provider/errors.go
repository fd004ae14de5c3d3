// Package provider classifies provider failures into a closed taxonomy.
package provider

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind classifies a provider failure. Values are stable; add sparingly.
type ErrorKind string

const (
	// KindCredential covers invalid or missing API credentials. Not retryable.
	KindCredential ErrorKind = "invalid_credentials"

	// KindRateLimit covers provider-side rate limiting. Retryable.
	KindRateLimit ErrorKind = "rate_limit_exceeded"

	// KindSafety covers content rejected by the provider's safety filter.
	// Not retryable.
	KindSafety ErrorKind = "content_safety_violation"

	// KindNetwork covers transport-level faults. Retryable.
	KindNetwork ErrorKind = "network_error"

	// KindUnknown covers everything else. Treated as retryable.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration // provider-suggested delay; zero if none given
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether a retry may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}

// NewError builds a classified provider error.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// IsRetryable reports whether err is a retryable provider error. Errors that
// are not provider errors at all are treated as non-retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// SuggestedDelay returns the provider-suggested retry delay for err, or the
// fallback if none was given.
func SuggestedDelay(err error, fallback time.Duration) time.Duration {
	var pe *Error
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter
	}
	return fallback
}

// Classify maps a raw transport or API error onto the taxonomy. Already
// classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(KindNetwork, "network fault", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return NewError(KindRateLimit, "rate limit exceeded", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return NewError(KindCredential, "invalid credentials", err)
	case strings.Contains(msg, "safety") || strings.Contains(msg, "content policy") || strings.Contains(msg, "content_filter"):
		return NewError(KindSafety, "content rejected by safety filter", err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "eof"):
		return NewError(KindNetwork, "network fault", err)
	default:
		return NewError(KindUnknown, "unclassified provider failure", err)
	}
}
