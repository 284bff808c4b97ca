package syncclient

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/realtime"
)

// Task is the client-side view of a task.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// taskPatch decodes a partial task from an update event. Nil fields were
// absent from the payload and leave the local entry unchanged.
type taskPatch struct {
	ID          uuid.UUID  `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// taskEventData is the data object of task.* events: created and update
// kinds carry the task, deletions carry only the identifier.
type taskEventData struct {
	Task   json.RawMessage `json:"task"`
	TaskID uuid.UUID       `json:"taskId"`
}

// TaskState holds the locally reconciled set of tasks. It is safe for
// concurrent use; the agent's read loop writes while callers read.
type TaskState struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]Task
}

// NewTaskState creates an empty TaskState.
func NewTaskState() *TaskState {
	return &TaskState{tasks: make(map[uuid.UUID]Task)}
}

// Replace overwrites the local view, typically from an initial HTTP list.
func (s *TaskState) Replace(tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[uuid.UUID]Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
}

// Apply reconciles one inbound event against the local view. Unknown
// event kinds, unknown task identifiers on updates and deletions, and
// undecodable payloads are all ignored without error: duplicate delivery
// and events for tasks the client has never seen are expected.
func (s *TaskState) Apply(event string, data json.RawMessage) {
	switch event {
	case realtime.EventTaskCreated:
		s.applyCreated(data)
	case realtime.EventTaskUpdated, realtime.EventTaskStatusChanged, realtime.EventTaskAssigned:
		s.applyPatch(data)
	case realtime.EventTaskDeleted:
		s.applyDeleted(data)
	}
}

func (s *TaskState) applyCreated(data json.RawMessage) {
	var payload taskEventData
	if err := json.Unmarshal(data, &payload); err != nil || payload.Task == nil {
		return
	}
	var task Task
	if err := json.Unmarshal(payload.Task, &task); err != nil || task.ID == uuid.Nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent against duplicate delivery.
	if _, exists := s.tasks[task.ID]; exists {
		return
	}
	s.tasks[task.ID] = task
}

func (s *TaskState) applyPatch(data json.RawMessage) {
	var payload taskEventData
	if err := json.Unmarshal(data, &payload); err != nil || payload.Task == nil {
		return
	}
	var patch taskPatch
	if err := json.Unmarshal(payload.Task, &patch); err != nil || patch.ID == uuid.Nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[patch.ID]
	if !exists {
		return
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.AssigneeID != nil {
		task.AssigneeID = patch.AssigneeID
	}
	if patch.UpdatedAt != nil {
		task.UpdatedAt = *patch.UpdatedAt
	}
	s.tasks[patch.ID] = task
}

func (s *TaskState) applyDeleted(data json.RawMessage) {
	var payload taskEventData
	if err := json.Unmarshal(data, &payload); err != nil || payload.TaskID == uuid.Nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, payload.TaskID)
}

// Get returns the local view of one task.
func (s *TaskState) Get(id uuid.UUID) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// List returns all tasks newest first, mirroring the server's ordering.
func (s *TaskState) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tasks in the local view.
func (s *TaskState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
