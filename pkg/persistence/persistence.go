// Package persistence provides the data storage abstraction used by the workflow engine.
package persistence

import (
	"context"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/google/uuid"
)

// Reader exposes the lookups the workflow pipeline needs. Stage, task and step lookups are
// scoped by project; an entity of another project is reported as not found.
type Reader interface {
	ProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TemplateByID(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error)

	// WorkflowStagesByTemplate returns the stage templates ordered by OrderIndex.
	WorkflowStagesByTemplate(ctx context.Context, templateID uuid.UUID) ([]*models.WorkflowStage, error)

	StageByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStage, error)

	// StagesByProject returns the project stages ordered by their template OrderIndex.
	StagesByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectStage, error)

	TaskByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectTask, error)
	TasksByStage(ctx context.Context, projectID, stageID uuid.UUID) ([]*models.ProjectTask, error)

	StepByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStep, error)
	StepsByTask(ctx context.Context, projectID, taskID uuid.UUID) ([]*models.ProjectStep, error)
}

// Store adds writes to Reader.
//
// Update methods use optimistic versioning: the stored version must equal the entity's
// Version, otherwise ErrConcurrentModification is returned. On success the entity's Version
// is incremented to match the stored row.
type Store interface {
	Reader

	SaveProject(ctx context.Context, project *models.Project) error
	SaveUser(ctx context.Context, user *models.User) error
	SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error

	CreateStage(ctx context.Context, stage *models.ProjectStage) error
	CreateTask(ctx context.Context, task *models.ProjectTask) error
	CreateStep(ctx context.Context, step *models.ProjectStep) error

	UpdateStage(ctx context.Context, stage *models.ProjectStage) error
	UpdateTask(ctx context.Context, task *models.ProjectTask) error
	UpdateStep(ctx context.Context, step *models.ProjectStep) error
}

// TxFunc runs inside a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, store Store) error

// Persistence is a Store with transactions and lifecycle management. Calling Store methods
// directly on a Persistence runs each of them in its own transaction.
type Persistence interface {
	Store

	Transact(ctx context.Context, fn TxFunc) error
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
