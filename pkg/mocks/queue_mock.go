package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/venturehq/venture/pkg/queue"
)

// MockDispatcher is a mock implementation of queue.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, job *queue.DispatchedJob) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}
