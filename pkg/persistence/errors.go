package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Standard persistence error types that all implementations should use.
var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrTemplateNotFound      = errors.New("workflow template not found")
	ErrWorkflowStageNotFound = errors.New("workflow stage not found")
	ErrStageNotFound         = errors.New("project stage not found")
	ErrTaskNotFound          = errors.New("project task not found")
	ErrStepNotFound          = errors.New("project step not found")

	// ErrConcurrentModification indicates a version conflict on update. The caller may
	// retry the whole operation.
	ErrConcurrentModification = errors.New("concurrent modification")
)

var notFoundErrors = []error{
	ErrProjectNotFound,
	ErrUserNotFound,
	ErrTemplateNotFound,
	ErrWorkflowStageNotFound,
	ErrStageNotFound,
	ErrTaskNotFound,
	ErrStepNotFound,
}

// EntityError wraps entity-related errors with additional context.
type EntityError struct {
	Op     string    // Operation being performed (e.g., "StageByID", "UpdateTask")
	Entity string    // Entity kind (e.g., "stage")
	ID     uuid.UUID // Entity ID
	Err    error     // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entity string, id uuid.UUID, err error) *EntityError {
	return &EntityError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsConcurrentModification checks if an error indicates an optimistic lock conflict.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
