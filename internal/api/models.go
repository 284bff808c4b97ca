package api

import (
	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name"     validate:"omitempty,max=100"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token,omitempty"`
}

// CreateTaskRequest defines the payload for task creation.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=4096"`
	Status      string `json:"status"      validate:"omitempty,oneof=pending in_progress done"`
}

// UpdateTaskRequest defines the payload for partial task updates. Nil
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"       validate:"omitempty,min=3,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=4096"`
	Status      *string    `json:"status"      validate:"omitempty,oneof=pending in_progress done"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task *domain.Task `json:"task"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}
