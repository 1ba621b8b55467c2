package mocks

import (
	"context"

	"github.com/dukex/buildflow/pkg/handlers"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of handlers.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notification handlers.Notification) error {
	args := m.Called(ctx, notification)

	return args.Error(0)
}
