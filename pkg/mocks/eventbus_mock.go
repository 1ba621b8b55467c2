// Package mocks provides testify mocks of the event bus and the notification sink.
package mocks

import (
	"context"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus records the workflow events published by the engine and the services.
// Tests set expectations on Publish with the project id as key.
type MockEventBus struct {
	mock.Mock
}

var _ eventbus.EventBus = (*MockEventBus)(nil)

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
