package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/domain"
)

// TaskUpdate carries the fields of a partial task update. Nil fields are
// left unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	AssigneeID  *uuid.UUID
}

// TaskStore defines the interface for task data persistence. All
// operations are scoped to an owning user; a task belonging to a
// different user behaves as if it does not exist.
type TaskStore interface {
	// Create saves a new task. Returns validation errors from the domain
	// Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID for the given owner.
	// Returns ErrTaskNotFound if absent or owned by someone else.
	GetByID(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// ListByUser returns the owner's tasks newest first. When status is
	// non-empty only tasks with that status are returned.
	ListByUser(ctx context.Context, userID uuid.UUID, status domain.TaskStatus) ([]*domain.Task, error)

	// Update applies a partial update to the owner's task and returns the
	// updated task. Returns ErrTaskNotFound if absent.
	Update(ctx context.Context, userID, taskID uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// Delete removes the owner's task. Returns ErrTaskNotFound if absent.
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
}
