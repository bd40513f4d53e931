// Package apperr defines the error taxonomy shared across Ansuz components.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an ID or title that does not resolve to a note,
	// or a link edge that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate link or an ID collision.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates bad input shape or value. Wrapped errors carry
	// the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrIntegrity indicates detected drift between the vault and the index,
	// or a referential violation inside the index.
	ErrIntegrity = errors.New("integrity violation")

	// ErrBusy is a transient error returned when a mutation arrives while a
	// full index rebuild holds the exclusive lock.
	ErrBusy = errors.New("index busy")
)

// Validation wraps err as a validation failure for the named field.
func Validation(field string, err error) error {
	return fmt.Errorf("%w: field %q: %v", ErrValidation, field, err)
}

// Validationf is Validation with a formatted reason.
func Validationf(field, format string, args ...any) error {
	return fmt.Errorf("%w: field %q: %s", ErrValidation, field, fmt.Sprintf(format, args...))
}

// ParseError reports a single canonical file that could not be parsed.
// Scans and rebuilds collect these per file instead of aborting.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
