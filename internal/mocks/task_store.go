package mocks

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/domain"
	"github.com/avelasco/taskboard-api/internal/store"
)

// MockTaskStore implements store.TaskStore for testing.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateFn     func(ctx context.Context, task *domain.Task) error
	GetByIDFn    func(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)
	ListByUserFn func(ctx context.Context, userID uuid.UUID, status domain.TaskStatus) ([]*domain.Task, error)
	UpdateFn     func(ctx context.Context, userID, taskID uuid.UUID, update store.TaskUpdate) (*domain.Task, error)
	DeleteFn     func(ctx context.Context, userID, taskID uuid.UUID) error

	// Data for the default implementation
	Tasks       map[uuid.UUID]*domain.Task
	CreateError error
	ListError   error
}

// NewMockTaskStore creates a new mock store with initialized defaults.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		Tasks: make(map[uuid.UUID]*domain.Task),
	}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Create implements the TaskStore interface.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if m.CreateError != nil {
		return m.CreateError
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.Tasks[task.ID] = task
	return nil
}

// GetByID implements the TaskStore interface.
func (m *MockTaskStore) GetByID(
	ctx context.Context,
	userID, taskID uuid.UUID,
) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, userID, taskID)
	}
	task, exists := m.Tasks[taskID]
	if !exists || task.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

// ListByUser implements the TaskStore interface.
func (m *MockTaskStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, userID, status)
	}
	if m.ListError != nil {
		return nil, m.ListError
	}

	out := make([]*domain.Task, 0)
	for _, task := range m.Tasks {
		if task.UserID != userID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update implements the TaskStore interface.
func (m *MockTaskStore) Update(
	ctx context.Context,
	userID, taskID uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, userID, taskID, update)
	}

	task, exists := m.Tasks[taskID]
	if !exists || task.UserID != userID {
		return nil, store.ErrTaskNotFound
	}

	updated := *task
	if update.Title != nil {
		updated.Title = *update.Title
	}
	if update.Description != nil {
		updated.Description = *update.Description
	}
	if update.Status != nil {
		updated.Status = *update.Status
	}
	if update.AssigneeID != nil {
		updated.AssigneeID = update.AssigneeID
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	m.Tasks[taskID] = &updated
	return &updated, nil
}

// Delete implements the TaskStore interface.
func (m *MockTaskStore) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, userID, taskID)
	}
	task, exists := m.Tasks[taskID]
	if !exists || task.UserID != userID {
		return store.ErrTaskNotFound
	}
	delete(m.Tasks, taskID)
	return nil
}
