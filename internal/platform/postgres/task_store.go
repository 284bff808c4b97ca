package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/domain"
	"github.com/avelasco/taskboard-api/internal/platform/logger"
	"github.com/avelasco/taskboard-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db store.DBTX
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, user_id, title, description, status, assignee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.AssigneeID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert task",
			"error", err,
			"task_id", task.ID,
			"user_id", task.UserID)
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(
	ctx context.Context,
	userID, taskID uuid.UUID,
) (*domain.Task, error) {
	query := `
		SELECT id, user_id, title, description, status, assignee_id, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`
	return scanTask(ctx, s.db.QueryRowContext(ctx, query, taskID, userID))
}

// ListByUser implements store.TaskStore.ListByUser.
func (s *PostgresTaskStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, title, description, status, assignee_id, created_at, updated_at
		FROM tasks
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		var assignee uuid.NullUUID
		if err := rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Title,
			&task.Description,
			&task.Status,
			&assignee,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			log.Error("failed to scan task row", "error", err, "user_id", userID)
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		if assignee.Valid {
			task.AssigneeID = &assignee.UUID
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", "error", err, "user_id", userID)
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update. The read-modify-write runs as
// a single UPDATE with COALESCE semantics handled in Go to keep partial
// updates explicit.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	userID, taskID uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	task, err := s.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.AssigneeID != nil {
		task.AssigneeID = update.AssigneeID
	}
	task.UpdatedAt = time.Now().UTC()

	if err := task.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, assignee_id = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.AssigneeID,
		task.UpdatedAt,
		taskID,
		userID,
	)
	if err != nil {
		log.Error("failed to update task", "error", err, "task_id", taskID)
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, store.ErrTaskNotFound
	}

	return task, nil
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		log.Error("failed to delete task", "error", err, "task_id", taskID)
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

func scanTask(ctx context.Context, row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	var assignee uuid.NullUUID
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&assignee,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContext(ctx).Error("failed to scan task row", "error", err)
		return nil, fmt.Errorf("failed to scan task row: %w", err)
	}
	if assignee.Valid {
		task.AssigneeID = &assignee.UUID
	}
	return &task, nil
}
