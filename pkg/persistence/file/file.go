// Package file provides file-based persistence for project workflows.
//
// Each project is stored as one JSON document holding its stages, tasks and steps, so a
// transaction touching one project rewrites a single file. Transactions are serialized by a
// process-wide mutex; writes are buffered and flushed only when the transaction function
// returns without error.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

// Transact runs fn with a store whose writes are committed only if fn succeeds.
func (fp *Persistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	tx := newTxStore(fp.root)

	err := fn(ctx, tx)
	if err != nil {
		return err
	}

	return tx.commit()
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("file persistence root unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("file persistence root %s is not a directory", fp.root)
	}

	return nil
}

func (fp *Persistence) ProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.Project, error) { return s.ProjectByID(ctx, id) })
}

func (fp *Persistence) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.User, error) { return s.UserByID(ctx, id) })
}

func (fp *Persistence) TemplateByID(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.WorkflowTemplate, error) { return s.TemplateByID(ctx, id) })
}

func (fp *Persistence) WorkflowStagesByTemplate(ctx context.Context, templateID uuid.UUID) ([]*models.WorkflowStage, error) {
	return read(ctx, fp, func(s persistence.Store) ([]*models.WorkflowStage, error) {
		return s.WorkflowStagesByTemplate(ctx, templateID)
	})
}

func (fp *Persistence) StageByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStage, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.ProjectStage, error) { return s.StageByID(ctx, projectID, id) })
}

func (fp *Persistence) StagesByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectStage, error) {
	return read(ctx, fp, func(s persistence.Store) ([]*models.ProjectStage, error) { return s.StagesByProject(ctx, projectID) })
}

func (fp *Persistence) TaskByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectTask, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.ProjectTask, error) { return s.TaskByID(ctx, projectID, id) })
}

func (fp *Persistence) TasksByStage(ctx context.Context, projectID, stageID uuid.UUID) ([]*models.ProjectTask, error) {
	return read(ctx, fp, func(s persistence.Store) ([]*models.ProjectTask, error) {
		return s.TasksByStage(ctx, projectID, stageID)
	})
}

func (fp *Persistence) StepByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStep, error) {
	return read(ctx, fp, func(s persistence.Store) (*models.ProjectStep, error) { return s.StepByID(ctx, projectID, id) })
}

func (fp *Persistence) StepsByTask(ctx context.Context, projectID, taskID uuid.UUID) ([]*models.ProjectStep, error) {
	return read(ctx, fp, func(s persistence.Store) ([]*models.ProjectStep, error) {
		return s.StepsByTask(ctx, projectID, taskID)
	})
}

func (fp *Persistence) SaveProject(ctx context.Context, project *models.Project) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.SaveProject(ctx, project) })
}

func (fp *Persistence) SaveUser(ctx context.Context, user *models.User) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.SaveUser(ctx, user) })
}

func (fp *Persistence) SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.SaveTemplate(ctx, template) })
}

func (fp *Persistence) CreateStage(ctx context.Context, stage *models.ProjectStage) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.CreateStage(ctx, stage) })
}

func (fp *Persistence) CreateTask(ctx context.Context, task *models.ProjectTask) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.CreateTask(ctx, task) })
}

func (fp *Persistence) CreateStep(ctx context.Context, step *models.ProjectStep) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.CreateStep(ctx, step) })
}

func (fp *Persistence) UpdateStage(ctx context.Context, stage *models.ProjectStage) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.UpdateStage(ctx, stage) })
}

func (fp *Persistence) UpdateTask(ctx context.Context, task *models.ProjectTask) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.UpdateTask(ctx, task) })
}

func (fp *Persistence) UpdateStep(ctx context.Context, step *models.ProjectStep) error {
	return fp.Transact(ctx, func(ctx context.Context, s persistence.Store) error { return s.UpdateStep(ctx, step) })
}

func read[T any](ctx context.Context, fp *Persistence, fn func(persistence.Store) (T, error)) (T, error) {
	var result T

	err := fp.Transact(ctx, func(_ context.Context, s persistence.Store) error {
		var err error

		result, err = fn(s)

		return err
	})

	return result, err
}
