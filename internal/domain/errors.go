package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service. The HTTP layer maps these
// to status codes; everything unrecognized becomes a 500.
var (
	// ErrNotFound signals an absent entity (place, record, code).
	ErrNotFound = errors.New("not found")

	// ErrInvalidRanking signals that the generative-text provider
	// answered with something that is not a valid JSON ranking.
	ErrInvalidRanking = errors.New("ranking response was not valid JSON")

	// ErrUpstreamUnavailable signals a refused or failed connection to
	// an external provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout signals an external provider deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrRateLimited signals the generative-text provider's rate limit
	// after internal retries were exhausted.
	ErrRateLimited = errors.New("upstream rate limited")
)

// ValidationError reports missing or malformed request input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
