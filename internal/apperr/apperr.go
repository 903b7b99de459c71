// Package apperr defines the error kinds surfaced by the services.
// Callers branch on kind with errors.As or the Is* helpers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports bad input or a business-rule violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors groups several field failures from one input.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, ve := range e {
		parts = append(parts, ve.Error())
	}
	return strings.Join(parts, "; ")
}

func (e ValidationErrors) As(target any) bool {
	if len(e) == 0 {
		return false
	}
	if t, ok := target.(**ValidationError); ok {
		*t = e[0]
		return true
	}
	return false
}

// StateConflictError reports an operation that the entity's current state forbids.
type StateConflictError struct {
	Entity string
	ID     any
	State  string
	Op     string
}

func (e *StateConflictError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("conflict: cannot %s %s %v", e.Op, e.Entity, e.ID)
	}
	return fmt.Sprintf("conflict: cannot %s %s %v in state %s", e.Op, e.Entity, e.ID, e.State)
}

// ExternalProviderError wraps a failed call to a price provider.
type ExternalProviderError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ExternalProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalProviderError) Unwrap() error { return e.Err }

// IntegrityError is fatal; the operation must not have touched storage.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return "integrity: " + e.Reason }

var ErrInvalidSignature = &IntegrityError{Reason: "invalid backup signature"}

// ConcurrencyError reports lock contention that outlived the retry budget.
type ConcurrencyError struct {
	Err error
}

func (e *ConcurrencyError) Error() string { return "concurrency: " + e.Err.Error() }

func (e *ConcurrencyError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsStateConflict(err error) bool {
	var target *StateConflictError
	return errors.As(err, &target)
}

func IsExternalProvider(err error) bool {
	var target *ExternalProviderError
	return errors.As(err, &target)
}

func IsIntegrity(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}

func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}
