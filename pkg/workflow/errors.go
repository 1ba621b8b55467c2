// Package workflow runs workflow transitions: context resolution, rule checks, execution,
// persistence and event publication.
package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
)

var (
	// ErrWorkflow matches every error raised by the workflow pipeline itself.
	ErrWorkflow = errors.New("workflow error")

	// ErrValidation is a rejected request or a rule failure. The caller may retry once the
	// preconditions change.
	ErrValidation = errors.New("workflow validation failed")

	// ErrUnsupportedAction is an action type without an implemented transition.
	ErrUnsupportedAction = errors.New("unsupported workflow action")

	// ErrConflict is a concurrent modification of the targeted entity. The whole request
	// may be resubmitted.
	ErrConflict = errors.New("workflow state was modified concurrently")
)

// Error carries the failure class in Kind and the human-readable reason in Message.
type Error struct {
	Op      string // Operation name
	Kind    error  // One of the Err* classes above
	Rule    string // Name of the rejecting rule, if any
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrWorkflow || target == e.Kind
}

// NewValidationError creates a validation-class error.
func NewValidationError(op, message string) *Error {
	return &Error{Op: op, Kind: ErrValidation, Message: message}
}

// NewRuleError reports the rule that rejected a transition.
func NewRuleError(op, rule, message string) *Error {
	return &Error{Op: op, Kind: ErrValidation, Rule: rule, Message: message}
}

// NewUnsupportedActionError reports an action type the executor does not implement.
func NewUnsupportedActionError(op string, action models.WorkflowActionType) *Error {
	return &Error{
		Op:      op,
		Kind:    ErrUnsupportedAction,
		Message: fmt.Sprintf("workflow action %s is not supported", action),
	}
}

// NewConflictError wraps a persistence conflict.
func NewConflictError(op string, err error) *Error {
	return &Error{Op: op, Kind: ErrConflict, Err: err}
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsUnsupportedAction(err error) bool {
	return errors.Is(err, ErrUnsupportedAction)
}

// IsConflict reports a retryable concurrent modification.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || persistence.IsConcurrentModification(err)
}

// IsNotFound reports a request referencing an entity that does not exist in the project.
func IsNotFound(err error) bool {
	return persistence.IsNotFound(err)
}
