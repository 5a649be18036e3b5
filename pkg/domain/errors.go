package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports blank or malformed input rejected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CycleError reports a reparent that would make a campus its own ancestor.
type CycleError struct {
	CampusID string
	TargetID string
}

func (e CycleError) Error() string {
	if e.CampusID == e.TargetID {
		return fmt.Sprintf("campus %s cannot be its own parent", e.CampusID)
	}
	return fmt.Sprintf("campus %s cannot move under its descendant %s", e.CampusID, e.TargetID)
}

// NotFoundError is returned when an operation targets an absent record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// PersistenceError wraps a durable store failure. The in-memory state has
// been rolled back to its pre-transaction snapshot when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// GenerationError wraps a draft-ticket generator failure. Callers recover
// from it locally with the deterministic fallback draft.
type GenerationError struct {
	Err error
}

func (e GenerationError) Error() string {
	return fmt.Sprintf("draft generation: %v", e.Err)
}

func (e GenerationError) Unwrap() error { return e.Err }

// ErrGeneratorUnavailable signals that no draft generator is configured.
var ErrGeneratorUnavailable = errors.New("draft generator unavailable")

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsCycle reports whether err carries a CycleError.
func IsCycle(err error) bool {
	var target CycleError
	return errors.As(err, &target)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsPersistence reports whether err carries a PersistenceError.
func IsPersistence(err error) bool {
	var target PersistenceError
	return errors.As(err, &target)
}
