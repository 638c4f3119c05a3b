package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is
var (
	// ErrInvalidSelection marks a selection whose labeling cannot stay well-formed
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrPrecondition marks a caller contract violation (bad token list, malformed chain)
	ErrPrecondition = errors.New("precondition violated")
	// ErrInvalidInput marks rejected input such as duplicate category codes
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing interview, category or token
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a read, write or parse failure of a storage collaborator
	ErrPersistence = errors.New("persistence failure")
)

// InvalidSelectionError reports a run that an interrupted selection would leave
// interleaved with the new category run
type InvalidSelectionError struct {
	Category CategoryID // category of the conflicting run
	Position int        // chain position of the run's opening token
	Reason   string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection: run of category %d opened at token %d %s", e.Category, e.Position, e.Reason)
}

func (e *InvalidSelectionError) Unwrap() error {
	return ErrInvalidSelection
}

// PreconditionError reports a programming error in the arguments of an operation
type PreconditionError struct {
	Op      string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// ValidationError reports rejected input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PersistenceError wraps failures of stores and file codecs so they are never
// mistaken for labeling errors
type PersistenceError struct {
	Op   string // e.g. "read", "parse", "write"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
