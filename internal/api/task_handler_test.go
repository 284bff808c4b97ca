package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasco/taskboard-api/internal/api/shared"
	"github.com/avelasco/taskboard-api/internal/domain"
	"github.com/avelasco/taskboard-api/internal/mocks"
)

// taskRequest builds a request carrying the authenticated user in its
// context, routed through chi so path parameters resolve.
func taskRequest(
	t *testing.T,
	method, target string,
	payload interface{},
	userID uuid.UUID,
) *http.Request {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	if userID != uuid.Nil {
		ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
		req = req.WithContext(ctx)
	}
	return req
}

func taskRouter(handler *TaskHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/tasks", handler.List)
	r.Post("/api/tasks", handler.Create)
	r.Put("/api/tasks/{id}", handler.Update)
	r.Delete("/api/tasks/{id}", handler.Delete)
	return r
}

func seedTask(t *testing.T, store *mocks.MockTaskStore, userID uuid.UUID, title string, status domain.TaskStatus) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(userID, title, "", status)
	require.NoError(t, err)
	store.Tasks[task.ID] = task
	return task
}

func TestTaskHandler_Create(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name       string
		payload    map[string]interface{}
		userID     uuid.UUID
		wantStatus int
	}{
		{
			name: "valid task",
			payload: map[string]interface{}{
				"title":       "Write report",
				"description": "quarterly numbers",
			},
			userID:     userID,
			wantStatus: http.StatusCreated,
		},
		{
			name: "explicit status",
			payload: map[string]interface{}{
				"title":  "Write report",
				"status": "in_progress",
			},
			userID:     userID,
			wantStatus: http.StatusCreated,
		},
		{
			name: "title too short",
			payload: map[string]interface{}{
				"title": "ab",
			},
			userID:     userID,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid status",
			payload: map[string]interface{}{
				"title":  "Write report",
				"status": "archived",
			},
			userID:     userID,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unauthenticated",
			payload: map[string]interface{}{
				"title": "Write report",
			},
			userID:     uuid.Nil,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			taskStore := mocks.NewMockTaskStore()
			router := taskRouter(NewTaskHandler(taskStore))

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, taskRequest(t, http.MethodPost, "/api/tasks", tt.payload, tt.userID))
			assert.Equal(t, tt.wantStatus, recorder.Code)

			if tt.wantStatus == http.StatusCreated {
				var resp TaskResponse
				require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
				assert.Equal(t, tt.userID, resp.Task.UserID)
				assert.Len(t, taskStore.Tasks, 1)
			}
		})
	}
}

func TestTaskHandler_List(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	otherUser := uuid.New()

	taskStore := mocks.NewMockTaskStore()
	seedTask(t, taskStore, userID, "Pending task", domain.TaskStatusPending)
	seedTask(t, taskStore, userID, "Done task", domain.TaskStatusDone)
	seedTask(t, taskStore, otherUser, "Someone else's task", domain.TaskStatusPending)

	router := taskRouter(NewTaskHandler(taskStore))

	t.Run("all own tasks", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, taskRequest(t, http.MethodGet, "/api/tasks", nil, userID))
		require.Equal(t, http.StatusOK, recorder.Code)

		var resp TaskListResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		assert.Len(t, resp.Tasks, 2)
	})

	t.Run("filtered by status", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, taskRequest(t, http.MethodGet, "/api/tasks?status=done", nil, userID))
		require.Equal(t, http.StatusOK, recorder.Code)

		var resp TaskListResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		require.Len(t, resp.Tasks, 1)
		assert.Equal(t, "Done task", resp.Tasks[0].Title)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, taskRequest(t, http.MethodGet, "/api/tasks?status=archived", nil, userID))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestTaskHandler_Update(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("partial update", func(t *testing.T) {
		t.Parallel()

		taskStore := mocks.NewMockTaskStore()
		task := seedTask(t, taskStore, userID, "Write report", domain.TaskStatusPending)
		router := taskRouter(NewTaskHandler(taskStore))

		payload := map[string]interface{}{"status": "done"}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), payload, userID))
		require.Equal(t, http.StatusOK, recorder.Code)

		var resp TaskResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		assert.Equal(t, domain.TaskStatusDone, resp.Task.Status)
		assert.Equal(t, "Write report", resp.Task.Title, "unspecified fields stay untouched")
	})

	t.Run("assign task", func(t *testing.T) {
		t.Parallel()

		taskStore := mocks.NewMockTaskStore()
		task := seedTask(t, taskStore, userID, "Write report", domain.TaskStatusPending)
		router := taskRouter(NewTaskHandler(taskStore))

		assignee := uuid.New()
		payload := map[string]interface{}{"assignee_id": assignee}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), payload, userID))
		require.Equal(t, http.StatusOK, recorder.Code)

		var resp TaskResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		require.NotNil(t, resp.Task.AssigneeID)
		assert.Equal(t, assignee, *resp.Task.AssigneeID)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		router := taskRouter(NewTaskHandler(mocks.NewMockTaskStore()))

		payload := map[string]interface{}{"status": "done"}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodPut, "/api/tasks/"+uuid.NewString(), payload, userID))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("someone else's task", func(t *testing.T) {
		t.Parallel()

		taskStore := mocks.NewMockTaskStore()
		task := seedTask(t, taskStore, uuid.New(), "Not yours", domain.TaskStatusPending)
		router := taskRouter(NewTaskHandler(taskStore))

		payload := map[string]interface{}{"status": "done"}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), payload, userID))
		assert.Equal(t, http.StatusNotFound, recorder.Code,
			"foreign tasks behave as if they do not exist")
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()

		router := taskRouter(NewTaskHandler(mocks.NewMockTaskStore()))

		payload := map[string]interface{}{"status": "done"}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodPut, "/api/tasks/not-a-uuid", payload, userID))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestTaskHandler_Delete(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("existing task", func(t *testing.T) {
		t.Parallel()

		taskStore := mocks.NewMockTaskStore()
		task := seedTask(t, taskStore, userID, "Write report", domain.TaskStatusPending)
		router := taskRouter(NewTaskHandler(taskStore))

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), nil, userID))
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Empty(t, taskStore.Tasks)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		router := taskRouter(NewTaskHandler(mocks.NewMockTaskStore()))

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder,
			taskRequest(t, http.MethodDelete, "/api/tasks/"+uuid.NewString(), nil, userID))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}
