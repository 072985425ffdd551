// Package errors provides standardized error types and helpers for the CiteKit codebase.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady indicates an operation was attempted before the session reached the required state
	ErrNotReady = errors.New("not ready")
	// ErrLocaleNotLoaded indicates a render required a locale that was never fetched
	ErrLocaleNotLoaded = errors.New("locale not loaded")
	// ErrOrderMismatch indicates a cluster order list is not a bijection with existing clusters
	ErrOrderMismatch = errors.New("order mismatch")
	// ErrFetchFailure indicates the locale fetch capability failed
	ErrFetchFailure = errors.New("fetch failure")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "reference", "cluster", "locale")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "CSL style", "CSL locale", "CSL-JSON")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// OrderError reports a cluster order list that is not a bijection with the
// clusters present in the graph.
type OrderError struct {
	Missing []int // cluster ids present in the graph but absent from the order list
	Extra   []int // ids in the order list that name no cluster (or repeat one)
}

func (e *OrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %v", sortedCopy(e.Missing)))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra %v", sortedCopy(e.Extra)))
	}
	if len(parts) == 0 {
		return "cluster order mismatch"
	}
	return "cluster order mismatch: " + strings.Join(parts, ", ")
}

func (e *OrderError) Unwrap() error {
	return ErrOrderMismatch
}

func sortedCopy(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}

// FetchError represents a failure of the locale fetch capability for one language tag.
type FetchError struct {
	Lang string // Language tag whose fetch failed
	Err  error  // Underlying error from the fetch capability
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch locale %s: %v", e.Lang, e.Err)
}

func (e *FetchError) Unwrap() error {
	return ErrFetchFailure
}

// StateError represents an operation attempted in the wrong session state.
type StateError struct {
	State     string // Current session state
	Operation string // Operation that was attempted
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Operation, e.State)
}

func (e *StateError) Unwrap() error {
	return ErrNotReady
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewFetch creates a FetchError
func NewFetch(lang string, err error) *FetchError {
	return &FetchError{
		Lang: lang,
		Err:  err,
	}
}

// NewState creates a StateError
func NewState(state, operation string) *StateError {
	return &StateError{
		State:     state,
		Operation: operation,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
