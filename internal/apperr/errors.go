// Package apperr defines the failure taxonomy shared by the trip engine.
//
// Every public operation of the engine returns either a success value or one
// of these errors, usually wrapped with fmt.Errorf("...: %w"). Callers match
// them with errors.As / errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrLocationUnavailable is returned when a field event has no usable geolocation.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrStaleState is returned when the stored trip changed between load and write.
	ErrStaleState = errors.New("trip state changed concurrently")
	// ErrDuplicateEvent is returned when a start or finish event was already recorded.
	ErrDuplicateEvent = errors.New("field event already recorded")
	// ErrNotFound is returned when a referenced trip or entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInconsistentRecord is returned when a stored trip no longer satisfies
	// the rules it was written under. Retrying does not help.
	ErrInconsistentRecord = errors.New("stored record is inconsistent")
)

// ValidationError flags the form fields that must be corrected.
type ValidationError struct {
	Fields map[string]string
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Add records a problem with field.
func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}

// Empty reports whether no field was flagged.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e when at least one field was flagged.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidTransition reports an event that is illegal for the current status.
type InvalidTransition struct {
	From    string
	Event   string
	Allowed []string
}

func (e *InvalidTransition) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("event %q not allowed from status %q (allowed: %s)", e.Event, e.From, allowed)
}

// AuthorizationError explains why the actor may not perform an action.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// StorageFailure wraps a backend error. Nothing was committed.
type StorageFailure struct {
	Op  string
	Err error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageFailure unless it already carries a typed failure.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var sf *StorageFailure
	if errors.As(err, &sf) {
		return err
	}
	return &StorageFailure{Op: op, Err: err}
}
