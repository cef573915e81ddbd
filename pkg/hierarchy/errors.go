package hierarchy

import (
	"errors"
	"fmt"
)

// Sentinel errors for hierarchy configuration loading and validation.
var (
	// ErrNotFound indicates a hierarchy_id has no matching configuration.
	ErrNotFound = errors.New("hierarchy configuration not found")

	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrNoTeams indicates a hierarchy has no teams configured.
	ErrNoTeams = errors.New("hierarchy has no teams")

	// ErrDuplicateWorkerName indicates two workers in the same team share a name.
	ErrDuplicateWorkerName = errors.New("duplicate worker name within team")

	// ErrDuplicateTeamName indicates two teams in the same hierarchy share a name.
	ErrDuplicateTeamName = errors.New("duplicate team name within hierarchy")

	// ErrMissingRequiredField indicates a required field is empty.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidExecutionMode indicates execution_mode is neither sequential nor parallel.
	ErrInvalidExecutionMode = errors.New("invalid execution mode")
)

// ValidationError wraps a configuration validation failure with the
// component and field it occurred in, matching the style used across the
// rest of the configuration stack (fail-fast, structured context).
type ValidationError struct {
	Component string // "hierarchy", "team", "worker"
	ID        string // team/worker name, or hierarchy_id
	Field     string // offending field, optional
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: field %q: %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Component, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError constructs a ValidationError.
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

// LoadError wraps a configuration file loading failure with file context.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load %s: %v", e.File, e.Err) }
func (e *LoadError) Unwrap() error  { return e.Err }

// NewLoadError constructs a LoadError.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
