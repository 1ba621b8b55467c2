// Package handlers holds the consumers of workflow events: notifications, the project
// timeline and progress reports. They run on the dispatcher, after the transition that
// produced the event has been committed.
package handlers

import (
	"time"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/google/uuid"
)

// projectEvent is satisfied by every decoded workflow event.
type projectEvent interface {
	eventbus.Event
	GetID() string
	GetProjectID() uuid.UUID
	GetTimestamp() time.Time
}

// Registrar is the part of the dispatcher handlers register against.
type Registrar interface {
	Register(eventType events.EventType, name string, handler eventbus.EventHandler)
	RegisterAll(name string, handler eventbus.EventHandler)
}
