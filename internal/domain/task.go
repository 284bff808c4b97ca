package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus enumerates the workflow states a task moves through.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Task validation errors
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwner   = errors.New("task owner cannot be empty")
	ErrTitleRequired    = errors.New("title is required")
	ErrTitleLength      = errors.New("title must be between 3 and 255 characters")
	ErrInvalidStatus    = errors.New("invalid status")
)

const (
	minTitleLength = 3
	maxTitleLength = 255
)

// Task represents a single task owned by a user.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a task for the given owner. Status defaults to pending
// when empty. Returns an error if validation fails.
func NewTask(userID uuid.UUID, title, description string, status TaskStatus) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}

	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.UserID == uuid.Nil {
		return ErrEmptyTaskOwner
	}
	if t.Title == "" {
		return ErrTitleRequired
	}
	if len(t.Title) < minTitleLength || len(t.Title) > maxTitleLength {
		return ErrTitleLength
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}
