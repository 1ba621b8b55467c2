package eventbus_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/buildflow/pkg/channels/gochannel"
	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishUsesEventIDAndMetadata(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	messages, err := sub.Subscribe(t.Context(), events.Topic)
	require.NoError(t, err)

	projectID := uuid.New()
	event := events.StageStarted{
		BaseEvent: events.NewBaseEvent(events.StageStartedEvent, projectID, uuid.New()),
		StageID:   uuid.New(),
		StageName: "Foundation",
	}

	require.NoError(t, bus.Publish(t.Context(), projectID.String(), event))

	select {
	case msg := <-messages:
		msg.Ack()

		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, projectID.String(), msg.Metadata.Get(events.EventMetadataKey))
		assert.Equal(t, string(events.StageStartedEvent), msg.Metadata.Get(events.EventTypeMetadataKey))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_PublishWithoutIDGetsOne(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	messages, err := sub.Subscribe(t.Context(), events.Topic)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(t.Context(), uuid.NewString(), events.StepCompleted{}))

	select {
	case msg := <-messages:
		msg.Ack()

		assert.NotEmpty(t, msg.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}
