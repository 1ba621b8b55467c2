// Package events defines the domain events published after workflow transitions.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow event.
const Topic = "buildflow.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StageStartedEvent         EventType = "stage.started"
	StageCompletedEvent       EventType = "stage.completed"
	TaskCompletedEvent        EventType = "task.completed"
	StepCompletedEvent        EventType = "step.completed"
	AssignmentAcceptedEvent   EventType = "assignment.accepted"
	WorkflowTransitionedEvent EventType = "workflow.transitioned"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// GetProjectID returns the project the event belongs to; it is the partition key.
func (b BaseEvent) GetProjectID() uuid.UUID {
	return b.ProjectID
}

func (b BaseEvent) GetID() string {
	return b.ID
}

func (b BaseEvent) GetTimestamp() time.Time {
	return b.Timestamp
}

type StageStarted struct {
	BaseEvent

	StageID   uuid.UUID `json:"stage_id"`
	StageName string    `json:"stage_name"`
	StartedAt time.Time `json:"started_at"`
}

func (e StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageCompleted struct {
	BaseEvent

	StageID     uuid.UUID `json:"stage_id"`
	StageName   string    `json:"stage_name"`
	CompletedAt time.Time `json:"completed_at"`

	// ActualDuration is the time between start and completion; zero when the stage was
	// completed without being started.
	ActualDuration time.Duration `json:"actual_duration"`
}

func (e StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

type TaskCompleted struct {
	BaseEvent

	StageID     uuid.UUID `json:"stage_id"`
	TaskID      uuid.UUID `json:"task_id"`
	TaskName    string    `json:"task_name"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type StepCompleted struct {
	BaseEvent

	TaskID      uuid.UUID `json:"task_id"`
	StepID      uuid.UUID `json:"step_id"`
	StepName    string    `json:"step_name"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type AssignmentAccepted struct {
	BaseEvent

	TaskID     uuid.UUID `json:"task_id"`
	TaskName   string    `json:"task_name"`
	AssigneeID uuid.UUID `json:"assignee_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

func (e AssignmentAccepted) GetType() EventType {
	return AssignmentAcceptedEvent
}

// WorkflowTransitioned covers the transitions without a dedicated event.
type WorkflowTransitioned struct {
	BaseEvent

	Action         models.WorkflowActionType `json:"action"`
	TargetLevel    models.TargetLevel        `json:"target_level"`
	TargetID       uuid.UUID                 `json:"target_id"`
	PreviousStatus models.WorkflowStatus     `json:"previous_status"`
	NewStatus      models.WorkflowStatus     `json:"new_status"`
}

func (e WorkflowTransitioned) GetType() EventType {
	return WorkflowTransitionedEvent
}

func NewBaseEvent(eventType EventType, projectID, userID uuid.UUID) BaseEvent {
	return NewBaseEventAt(eventType, projectID, userID, time.Now())
}

// NewBaseEventAt stamps the event with at, the time the change it reports happened.
func NewBaseEventAt(eventType EventType, projectID, userID uuid.UUID, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at.UTC(),
		ProjectID: projectID,
		UserID:    userID,
	}
}

var factories = map[EventType]func() any{
	StageStartedEvent:         func() any { return &StageStarted{} },
	StageCompletedEvent:       func() any { return &StageCompleted{} },
	TaskCompletedEvent:        func() any { return &TaskCompleted{} },
	StepCompletedEvent:        func() any { return &StepCompleted{} },
	AssignmentAcceptedEvent:   func() any { return &AssignmentAccepted{} },
	WorkflowTransitionedEvent: func() any { return &WorkflowTransitioned{} },
}

// Decode unmarshals payload into a pointer to the event struct registered for eventType.
func Decode(eventType EventType, payload []byte) (any, error) {
	factory, ok := factories[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	event := factory()

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}
