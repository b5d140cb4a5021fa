// Package services implements workflow storage, readiness and transfer on top of the graph checks.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidSortField     = errors.New("invalid sort field")
	ErrInvalidSortOrder     = errors.New("invalid sort order")
	ErrEmptyOwnerID         = errors.New("owner ID cannot be empty")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrGraphInvalid         = errors.New("workflow graph is invalid")

	// Business Logic Conflicts (409 Conflict).
	ErrNotExecutable = errors.New("workflow cannot execute with the current controller state")

	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GraphValidationError carries the structural findings that blocked a save.
type GraphValidationError struct {
	Errors   []models.Issue
	Warnings []models.Issue
}

func (e *GraphValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrGraphInvalid.Error()
	}

	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", ErrGraphInvalid, e.Errors[0].Message)
	}

	return fmt.Sprintf("%s: %s (and %d more)", ErrGraphInvalid, e.Errors[0].Message, len(e.Errors)-1)
}

func (e *GraphValidationError) Is(target error) bool {
	return target == ErrGraphInvalid
}

// AsGraphValidationError extracts the structural findings from err.
func AsGraphValidationError(err error) (*GraphValidationError, bool) {
	var graphErr *GraphValidationError
	if errors.As(err, &graphErr) {
		return graphErr, true
	}

	return nil, false
}

// ReadinessError reports why a workflow could not be activated.
type ReadinessError struct {
	WorkflowID string
	Report     *ReadinessReport
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.WorkflowID, ErrNotExecutable)
}

func (e *ReadinessError) Is(target error) bool {
	return target == ErrNotExecutable
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrGraphInvalid)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNotExecutable)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
