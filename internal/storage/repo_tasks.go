package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// ErrTaskNotFound is returned by GetTask when no row matches the id.
var ErrTaskNotFound = errors.New("task not found")

// CreateTask inserts a new task row.
func (r *Repo) CreateTask(ctx context.Context, t *roadmap.Task) error {
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO tasks (task_id, user_id, title, status, current_step, roadmap_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.UserID, t.Title, t.Status, t.CurrentStep, nullableString(t.RoadmapID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "create task")
	}
	return nil
}

// GetTask reads one task row.
func (r *Repo) GetTask(ctx context.Context, taskID string) (*roadmap.Task, error) {
	var t roadmap.Task
	err := r.tx.QueryRowxContext(ctx, `
		SELECT task_id, user_id, title, status, current_step, COALESCE(roadmap_id, ''), created_at, updated_at, completed_at, error_message
		FROM tasks WHERE task_id = ?`, taskID).Scan(
		&t.TaskID, &t.UserID, &t.Title, &t.Status, &t.CurrentStep, &t.RoadmapID, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get task")
	}
	return &t, nil
}

// UpdateTaskStatus sets status, current_step, and (for terminal statuses)
// completed_at/error_message in one statement. Terminal statuses are
// absorbing: the caller must not call this once a task is already terminal.
func (r *Repo) UpdateTaskStatus(ctx context.Context, taskID string, status roadmap.TaskStatus, currentStep, errMsg string) error {
	now := time.Now()
	var completedAt *time.Time
	if status.Terminal() {
		completedAt = &now
	}
	_, err := r.tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, current_step = ?, updated_at = ?, completed_at = COALESCE(completed_at, ?), error_message = ?
		WHERE task_id = ?`,
		status, currentStep, now, completedAt, errMsg, taskID)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "update task status")
	}
	return nil
}

// SetTaskRoadmapID links a task to the roadmap id chosen for it.
func (r *Repo) SetTaskRoadmapID(ctx context.Context, taskID, roadmapID string) error {
	_, err := r.tx.ExecContext(ctx, `UPDATE tasks SET roadmap_id = ?, updated_at = ? WHERE task_id = ?`, roadmapID, time.Now(), taskID)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "set task roadmap id")
	}
	return nil
}

// RoadmapIDExists reports whether a roadmap with that id already exists,
// used by Brain.EnsureUniqueRoadmapID.
func (r *Repo) RoadmapIDExists(ctx context.Context, roadmapID string) (bool, error) {
	var n int
	if err := r.tx.QueryRowxContext(ctx, `SELECT COUNT(1) FROM roadmaps WHERE roadmap_id = ?`, roadmapID).Scan(&n); err != nil {
		return false, errkind.Wrap(err, errkind.Recoverable, "check roadmap id")
	}
	return n > 0, nil
}

// GetTaskIDByRoadmapID resolves a roadmap id back to the task that
// produced it, for endpoints addressed by roadmap id (the retry surface)
// rather than by task id.
func (r *Repo) GetTaskIDByRoadmapID(ctx context.Context, roadmapID string) (string, error) {
	var taskID string
	err := r.tx.QueryRowxContext(ctx, `SELECT task_id FROM tasks WHERE roadmap_id = ?`, roadmapID).Scan(&taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	if err != nil {
		return "", errkind.Wrap(err, errkind.Recoverable, "get task id by roadmap id")
	}
	return taskID, nil
}

// ListStaleProcessingTasks returns tasks stuck in TaskProcessing whose
// updated_at is older than cutoff — candidates for the timeout sweep to
// fail, since their node execution never reported back.
func (r *Repo) ListStaleProcessingTasks(ctx context.Context, cutoff time.Time) ([]roadmap.Task, error) {
	rows, err := r.tx.QueryxContext(ctx, `
		SELECT task_id, user_id, title, status, current_step, COALESCE(roadmap_id, ''), created_at, updated_at, completed_at, error_message
		FROM tasks WHERE status = ? AND updated_at < ?`, roadmap.TaskProcessing, cutoff)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "list stale processing tasks")
	}
	defer rows.Close()

	var out []roadmap.Task
	for rows.Next() {
		var t roadmap.Task
		if err := rows.Scan(&t.TaskID, &t.UserID, &t.Title, &t.Status, &t.CurrentStep, &t.RoadmapID, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.ErrorMessage); err != nil {
			return nil, errkind.Wrap(err, errkind.Recoverable, "scan stale processing task")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
