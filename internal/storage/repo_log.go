package storage

import (
	"context"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// AppendLog inserts one execution log row. Rows are never updated or
// deleted; (task_id, created_at, id) gives a total replay order.
func (r *Repo) AppendLog(ctx context.Context, l *roadmap.ExecutionLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	res, err := r.tx.ExecContext(ctx, `
		INSERT INTO execution_logs (task_id, level, category, step, agent_name, message, details, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.TaskID, l.Level, l.Category, l.Step, l.AgentName, l.Message, l.Details, l.DurationMs, l.CreatedAt)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "append execution log")
	}
	if id, err := res.LastInsertId(); err == nil {
		l.ID = id
	}
	return nil
}

// ListLogs returns every execution log row for a task, in replay order.
// Used by the logs external interface; the live stream's include_history
// replay does not read it.
func (r *Repo) ListLogs(ctx context.Context, taskID string) ([]roadmap.ExecutionLog, error) {
	rows, err := r.tx.QueryxContext(ctx, `
		SELECT id, task_id, level, category, step, agent_name, message, details, duration_ms, created_at
		FROM execution_logs WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "list execution logs")
	}
	defer rows.Close()

	var out []roadmap.ExecutionLog
	for rows.Next() {
		var l roadmap.ExecutionLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.Level, &l.Category, &l.Step, &l.AgentName, &l.Message, &l.Details, &l.DurationMs, &l.CreatedAt); err != nil {
			return nil, errkind.Wrap(err, errkind.Recoverable, "scan execution log")
		}
		out = append(out, l)
	}
	return out, nil
}
