package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/log"
	"github.com/google/uuid"
)

// Notification is a human-readable message about a workflow change.
type Notification struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	EventType events.EventType
	Subject   string
	Body      string
}

// Notifier delivers notifications to people.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "log_notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	log.FromContext(ctx, n.logger).InfoContext(ctx, notification.Subject,
		"project_id", notification.ProjectID,
		"user_id", notification.UserID,
		"event_type", notification.EventType,
		"body", notification.Body)

	return nil
}

// Notifications turns stage, task and assignment events into notifications.
type Notifications struct {
	logger   *slog.Logger
	notifier Notifier
}

func NewNotifications(logger *slog.Logger, notifier Notifier) *Notifications {
	return &Notifications{
		logger:   logger.With("module", "notifications"),
		notifier: notifier,
	}
}

// Register subscribes the handler to the events people are told about.
func (n *Notifications) Register(registrar Registrar) {
	for _, eventType := range []events.EventType{
		events.StageStartedEvent,
		events.StageCompletedEvent,
		events.TaskCompletedEvent,
		events.AssignmentAcceptedEvent,
	} {
		registrar.Register(eventType, "notifications", n.Handle)
	}
}

// Handle formats event and sends it. Events without a message are ignored.
func (n *Notifications) Handle(ctx context.Context, event any) error {
	notification, ok := Format(event)
	if !ok {
		return nil
	}

	err := n.notifier.Notify(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", notification.EventType, err)
	}

	log.FromContext(ctx, n.logger).DebugContext(ctx, "Notification sent", "project_id", notification.ProjectID)

	return nil
}

// Format builds the notification of event. It reports false for events nobody is notified of.
func Format(event any) (Notification, bool) {
	switch e := event.(type) {
	case *events.StageStarted:
		return Notification{
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			EventType: e.GetType(),
			Subject:   fmt.Sprintf("Stage %q started", e.StageName),
			Body:      fmt.Sprintf("Work on stage %q started at %s.", e.StageName, e.StartedAt.Format("2006-01-02 15:04 MST")),
		}, true
	case *events.StageCompleted:
		body := fmt.Sprintf("Stage %q was completed at %s.", e.StageName, e.CompletedAt.Format("2006-01-02 15:04 MST"))
		if e.ActualDuration > 0 {
			body = strings.TrimSuffix(body, ".") + fmt.Sprintf(" after %s.", e.ActualDuration.Round(time.Second))
		}

		return Notification{
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			EventType: e.GetType(),
			Subject:   fmt.Sprintf("Stage %q completed", e.StageName),
			Body:      body,
		}, true
	case *events.TaskCompleted:
		return Notification{
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			EventType: e.GetType(),
			Subject:   fmt.Sprintf("Task %q completed", e.TaskName),
			Body:      fmt.Sprintf("Task %q was completed at %s.", e.TaskName, e.CompletedAt.Format("2006-01-02 15:04 MST")),
		}, true
	case *events.AssignmentAccepted:
		return Notification{
			ProjectID: e.ProjectID,
			UserID:    e.AssigneeID,
			EventType: e.GetType(),
			Subject:   fmt.Sprintf("Task %q accepted", e.TaskName),
			Body:      fmt.Sprintf("The assignment of task %q was accepted.", e.TaskName),
		}, true
	default:
		return Notification{}, false
	}
}
