// Package postgresql provides PostgreSQL-based persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
	store  *store
}

// NewPersistence creates a new PostgreSQL persistence layer and applies pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	postgres := &Persistence{
		db:     db,
		logger: logger.With("module", "postgresql_persistence"),
		store:  &store{q: db},
	}

	err = sqlbase.NewMigrationManager(postgres.logger, db, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Transact runs fn inside a database transaction.
func (p *Persistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(ctx, &store{q: tx})
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			p.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

func (p *Persistence) ProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return p.store.ProjectByID(ctx, id)
}

func (p *Persistence) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return p.store.UserByID(ctx, id)
}

func (p *Persistence) TemplateByID(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	return p.store.TemplateByID(ctx, id)
}

func (p *Persistence) WorkflowStagesByTemplate(ctx context.Context, templateID uuid.UUID) ([]*models.WorkflowStage, error) {
	return p.store.WorkflowStagesByTemplate(ctx, templateID)
}

func (p *Persistence) StageByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStage, error) {
	return p.store.StageByID(ctx, projectID, id)
}

func (p *Persistence) StagesByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectStage, error) {
	return p.store.StagesByProject(ctx, projectID)
}

func (p *Persistence) TaskByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectTask, error) {
	return p.store.TaskByID(ctx, projectID, id)
}

func (p *Persistence) TasksByStage(ctx context.Context, projectID, stageID uuid.UUID) ([]*models.ProjectTask, error) {
	return p.store.TasksByStage(ctx, projectID, stageID)
}

func (p *Persistence) StepByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStep, error) {
	return p.store.StepByID(ctx, projectID, id)
}

func (p *Persistence) StepsByTask(ctx context.Context, projectID, taskID uuid.UUID) ([]*models.ProjectStep, error) {
	return p.store.StepsByTask(ctx, projectID, taskID)
}

func (p *Persistence) SaveProject(ctx context.Context, project *models.Project) error {
	return p.store.SaveProject(ctx, project)
}

func (p *Persistence) SaveUser(ctx context.Context, user *models.User) error {
	return p.store.SaveUser(ctx, user)
}

// SaveTemplate writes the template and its stage, task and step definitions atomically.
func (p *Persistence) SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error {
	return p.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		return tx.SaveTemplate(ctx, template)
	})
}

func (p *Persistence) CreateStage(ctx context.Context, stage *models.ProjectStage) error {
	return p.store.CreateStage(ctx, stage)
}

func (p *Persistence) CreateTask(ctx context.Context, task *models.ProjectTask) error {
	return p.store.CreateTask(ctx, task)
}

func (p *Persistence) CreateStep(ctx context.Context, step *models.ProjectStep) error {
	return p.store.CreateStep(ctx, step)
}

func (p *Persistence) UpdateStage(ctx context.Context, stage *models.ProjectStage) error {
	return p.store.UpdateStage(ctx, stage)
}

func (p *Persistence) UpdateTask(ctx context.Context, task *models.ProjectTask) error {
	return p.store.UpdateTask(ctx, task)
}

func (p *Persistence) UpdateStep(ctx context.Context, step *models.ProjectStep) error {
	return p.store.UpdateStep(ctx, step)
}
