package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetType(t *testing.T) {
	assert.Equal(t, StageStartedEvent, StageStarted{}.GetType())
	assert.Equal(t, StageCompletedEvent, StageCompleted{}.GetType())
	assert.Equal(t, TaskCompletedEvent, TaskCompleted{}.GetType())
	assert.Equal(t, StepCompletedEvent, StepCompleted{}.GetType())
	assert.Equal(t, AssignmentAcceptedEvent, AssignmentAccepted{}.GetType())
	assert.Equal(t, WorkflowTransitionedEvent, WorkflowTransitioned{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()

	base := NewBaseEvent(StageStartedEvent, projectID, userID)

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, StageStartedEvent, base.Type)
	assert.Equal(t, projectID, base.GetProjectID())
	assert.Equal(t, userID, base.UserID)
	assert.WithinDuration(t, time.Now(), base.Timestamp, time.Second)
}

func TestNewBaseEventAt(t *testing.T) {
	at := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.FixedZone("BRT", -3*60*60))

	base := NewBaseEventAt(StageStartedEvent, uuid.New(), uuid.New(), at)

	assert.True(t, at.Equal(base.Timestamp))
	assert.Equal(t, time.UTC, base.Timestamp.Location())
}

func TestDecode_StageCompleted(t *testing.T) {
	original := StageCompleted{
		BaseEvent:      NewBaseEvent(StageCompletedEvent, uuid.New(), uuid.New()),
		StageID:        uuid.New(),
		StageName:      "Foundation",
		CompletedAt:    time.Now().UTC(),
		ActualDuration: 72 * time.Hour,
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := Decode(StageCompletedEvent, payload)
	require.NoError(t, err)

	event, ok := decoded.(*StageCompleted)
	require.True(t, ok)
	assert.Equal(t, original.StageID, event.StageID)
	assert.Equal(t, original.ProjectID, event.ProjectID)
	assert.Equal(t, 72*time.Hour, event.ActualDuration)
}

func TestDecode_WorkflowTransitioned(t *testing.T) {
	payload := []byte(`{"type":"workflow.transitioned","action":"PAUSE_STAGE","target_level":"STAGE","previous_status":"IN_PROGRESS","new_status":"BLOCKED"}`)

	decoded, err := Decode(WorkflowTransitionedEvent, payload)
	require.NoError(t, err)

	event, ok := decoded.(*WorkflowTransitioned)
	require.True(t, ok)
	assert.Equal(t, models.ActionPauseStage, event.Action)
	assert.Equal(t, models.StatusBlocked, event.NewStatus)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("unknown.event", []byte(`{}`))
	assert.Error(t, err)

	_, err = Decode(StageStartedEvent, []byte(`{not json`))
	assert.Error(t, err)
}
