package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/buildflow/pkg/channels/gochannel"
	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/metrics"
	"github.com/dukex/buildflow/pkg/otelhelper"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) handle(_ context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *recorder) received() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.events...)
}

func TestDispatcher_DeliversDecodedEvents(t *testing.T) {
	bus := newBus(t)
	dispatcher := eventbus.NewDispatcher(slog.Default(), metrics.NewNop(), otelhelper.NoopTracer(), 2)
	t.Cleanup(dispatcher.Stop)

	rec := &recorder{}
	dispatcher.Register(events.StageStartedEvent, "recorder", rec.handle)
	require.NoError(t, dispatcher.Start(t.Context(), bus))

	event := events.StageStarted{
		BaseEvent: events.NewBaseEvent(events.StageStartedEvent, uuid.New(), uuid.New()),
		StageID:   uuid.New(),
		StageName: "Foundation",
	}
	require.NoError(t, bus.Publish(t.Context(), event.ProjectID.String(), event))

	require.Eventually(t, func() bool { return len(rec.received()) == 1 }, 2*time.Second, 10*time.Millisecond)

	received, ok := rec.received()[0].(*events.StageStarted)
	require.True(t, ok)
	assert.Equal(t, event.StageID, received.StageID)
	assert.Equal(t, event.ProjectID, received.ProjectID)
}

func TestDispatcher_IsolatesFailingHandlers(t *testing.T) {
	bus := newBus(t)
	dispatcher := eventbus.NewDispatcher(slog.Default(), metrics.NewNop(), otelhelper.NoopTracer(), 1)
	t.Cleanup(dispatcher.Stop)

	var failures atomic.Int32

	rec := &recorder{}
	dispatcher.Register(events.TaskCompletedEvent, "failing", func(context.Context, any) error {
		failures.Add(1)

		return errors.New("smtp unavailable")
	})
	dispatcher.Register(events.TaskCompletedEvent, "panicking", func(context.Context, any) error {
		panic("boom")
	})
	dispatcher.Register(events.TaskCompletedEvent, "recorder", rec.handle)
	require.NoError(t, dispatcher.Start(t.Context(), bus))

	for range 2 {
		event := events.TaskCompleted{
			BaseEvent: events.NewBaseEvent(events.TaskCompletedEvent, uuid.New(), uuid.New()),
			TaskID:    uuid.New(),
		}
		require.NoError(t, bus.Publish(t.Context(), event.ProjectID.String(), event))
	}

	require.Eventually(t, func() bool { return len(rec.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), failures.Load())
}

func TestDispatcher_RegisterAllAndStop(t *testing.T) {
	bus := newBus(t)
	dispatcher := eventbus.NewDispatcher(slog.Default(), metrics.NewNop(), otelhelper.NoopTracer(), 4)

	rec := &recorder{}
	dispatcher.RegisterAll("recorder", rec.handle)
	require.NoError(t, dispatcher.Start(t.Context(), bus))

	projectID := uuid.New()
	require.NoError(t, bus.Publish(t.Context(), projectID.String(), events.AssignmentAccepted{
		BaseEvent: events.NewBaseEvent(events.AssignmentAcceptedEvent, projectID, uuid.New()),
		TaskID:    uuid.New(),
	}))
	require.NoError(t, bus.Publish(t.Context(), projectID.String(), events.WorkflowTransitioned{
		BaseEvent: events.NewBaseEvent(events.WorkflowTransitionedEvent, projectID, uuid.New()),
	}))

	require.Eventually(t, func() bool { return len(rec.received()) == 2 }, 2*time.Second, 10*time.Millisecond)

	dispatcher.Stop()
	dispatcher.Stop()

	err := dispatcher.Dispatch(t.Context(), events.StageStartedEvent, &events.StageStarted{})
	assert.ErrorIs(t, err, eventbus.ErrDispatcherStopped)
}

func TestDispatcher_StartTwice(t *testing.T) {
	bus := newBus(t)
	dispatcher := eventbus.NewDispatcher(slog.Default(), metrics.NewNop(), otelhelper.NoopTracer(), 1)
	t.Cleanup(dispatcher.Stop)

	require.NoError(t, dispatcher.Start(t.Context(), bus))
	assert.Error(t, dispatcher.Start(t.Context(), bus))
}
