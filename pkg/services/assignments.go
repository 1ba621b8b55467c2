package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
)

// Assignments manages who works on a task.
type Assignments struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	clock       func() time.Time
}

func NewAssignments(logger *slog.Logger, persistence persistence.Persistence, publisher eventbus.EventPublisher) *Assignments {
	return &Assignments{
		logger:      logger.With("module", "assignments"),
		persistence: persistence,
		publisher:   publisher,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Assign sets the assignee of a task and resets any previous acceptance.
func (a *Assignments) Assign(ctx context.Context, projectID, taskID, assigneeID uuid.UUID) (*models.ProjectTask, error) {
	var assigned *models.ProjectTask

	err := a.persistence.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		if _, err := tx.UserByID(ctx, assigneeID); err != nil {
			return err
		}

		task, err := tx.TaskByID(ctx, projectID, taskID)
		if err != nil {
			return err
		}

		task.AssigneeID = &assigneeID
		task.AssignmentAccepted = false
		task.AcceptedAt = nil

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		assigned = task

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign task %s: %w", taskID, err)
	}

	a.logger.InfoContext(ctx, "Task assigned", "project_id", projectID, "task_id", taskID, "assignee_id", assigneeID)

	return assigned, nil
}

// Accept records that userID accepted the assignment of taskID and publishes
// AssignmentAccepted. A publishing failure is logged; the acceptance stays committed.
func (a *Assignments) Accept(ctx context.Context, projectID, taskID, userID uuid.UUID) (*models.ProjectTask, error) {
	var accepted *models.ProjectTask

	now := a.clock()

	err := a.persistence.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		task, err := tx.TaskByID(ctx, projectID, taskID)
		if err != nil {
			return err
		}

		switch {
		case task.AssigneeID == nil:
			return ErrTaskNotAssigned
		case *task.AssigneeID != userID:
			return ErrNotAssignee
		case task.AssignmentAccepted:
			return ErrAlreadyAccepted
		}

		task.AssignmentAccepted = true
		task.AcceptedAt = &now

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		accepted = task

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept task %s: %w", taskID, err)
	}

	event := events.AssignmentAccepted{
		BaseEvent:  events.NewBaseEventAt(events.AssignmentAcceptedEvent, projectID, userID, now),
		TaskID:     accepted.ID,
		TaskName:   accepted.Name,
		AssigneeID: userID,
		AcceptedAt: now,
	}

	if err := a.publisher.Publish(ctx, projectID.String(), event); err != nil {
		a.logger.ErrorContext(ctx, "Failed to publish assignment event", "task_id", taskID, "error", err)
	}

	a.logger.InfoContext(ctx, "Assignment accepted", "project_id", projectID, "task_id", taskID, "user_id", userID)

	return accepted, nil
}
