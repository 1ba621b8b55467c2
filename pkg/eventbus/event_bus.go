// Package eventbus delivers domain events from the workflow engine to their consumers.
package eventbus

import (
	"context"

	"github.com/dukex/buildflow/pkg/events"
)

// Event is a workflow event published after a committed transition or an accepted
// assignment. Every event in pkg/events satisfies it through events.BaseEvent.
type Event interface {
	GetID() string
	GetType() events.EventType
}

// EventPublisher is what the engine and the services see. The key is the project id, so
// every event of a project lands on the same Kafka partition and stays ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes incoming events to one handler per event type. Handlers are
// registered with Handle before Subscribe starts consuming.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event struct, e.g. *events.StageStarted.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
