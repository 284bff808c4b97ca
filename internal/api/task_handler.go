package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/api/shared"
	"github.com/avelasco/taskboard-api/internal/domain"
	"github.com/avelasco/taskboard-api/internal/store"
)

// TaskHandler handles task CRUD API requests. All operations are scoped
// to the authenticated user.
type TaskHandler struct {
	taskStore store.TaskStore
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskStore store.TaskStore) *TaskHandler {
	return &TaskHandler{
		taskStore: taskStore,
		validator: validator.New(),
	}
}

// List handles GET /tasks with an optional ?status= filter.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	status := domain.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status")
		return
	}

	tasks, err := h.taskStore.ListByUser(r.Context(), userID, status)
	if err != nil {
		slog.Error("failed to list tasks", "error", err, "user_id", userID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to retrieve tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: tasks})
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := domain.NewTask(userID, req.Title, req.Description, domain.TaskStatus(req.Status))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task data: "+err.Error())
		return
	}

	if err := h.taskStore.Create(r.Context(), task); err != nil {
		slog.Error("failed to create task", "error", err, "user_id", userID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, TaskResponse{Task: task})
}

// Update handles PUT /tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	taskID, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	update := store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		update.Status = &status
	}

	task, err := h.taskStore.Update(r.Context(), userID, taskID, update)
	if err != nil {
		h.respondTaskError(w, r, err, userID, taskID, "update")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{Task: task})
}

// Delete handles DELETE /tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	taskID, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskStore.Delete(r.Context(), userID, taskID); err != nil {
		h.respondTaskError(w, r, err, userID, taskID, "delete")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (h *TaskHandler) respondTaskError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	userID, taskID uuid.UUID,
	op string,
) {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, domain.ErrTitleLength),
		errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrInvalidStatus):
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
	default:
		slog.Error("failed to "+op+" task", "error", err, "user_id", userID, "task_id", taskID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to "+op+" task")
	}
}
