package frontier

import (
	"errors"
	"fmt"
)

// Error taxonomy for a simulation run. Callers match with errors.Is.
// None of these are retryable by the core itself.
var (
	// ErrInvalidConfiguration is returned before any computation when the
	// request is malformed (no symbols, inverted date range, sample count out of bounds).
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoData is returned when the price provider produced nothing usable
	// for the requested symbols and range.
	ErrNoData = errors.New("no price data")

	// ErrInsufficientData is returned when fewer than two aligned return
	// observations are available.
	ErrInsufficientData = errors.New("insufficient data")
)

// ValidationError describes a single rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
