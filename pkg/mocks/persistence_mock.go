// Package mocks provides testify mocks for the engine's collaborator
// interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/venturehq/venture/pkg/models"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Workflows(ctx context.Context) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowInstance) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockPersistence) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) SaveJob(ctx context.Context, workflowID string, job *models.JobNode) error {
	args := m.Called(ctx, workflowID, job)

	return args.Error(0)
}

func (m *MockPersistence) JobByID(ctx context.Context, workflowID, jobID string) (*models.JobNode, error) {
	args := m.Called(ctx, workflowID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JobNode), args.Error(1)
}

func (m *MockPersistence) JobsByWorkflowID(ctx context.Context, workflowID string) ([]*models.JobNode, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.JobNode), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
