package icelift

import (
	"errors"
	"fmt"
)

// Common errors for icelift operations.
var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Discovery errors
	ErrNoTables = errors.New("no tables found in catalog")

	// Setup errors
	ErrSourceUnavailable      = errors.New("source store unavailable")
	ErrDestinationUnavailable = errors.New("destination store unavailable")
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// Is reports whether the target matches this error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}
