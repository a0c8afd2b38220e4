package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// ErrCheckpointNotFound is returned when a task has no saved checkpoint.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// NextCheckpointSequence returns the sequence number the next checkpoint
// for a task should use, giving checkpoints for one task a total order.
func (r *Repo) NextCheckpointSequence(ctx context.Context, taskID string) (int64, error) {
	var maxSeq sql.NullInt64
	err := r.tx.QueryRowxContext(ctx, `SELECT MAX(sequence) FROM checkpoints WHERE task_id = ?`, taskID).Scan(&maxSeq)
	if err != nil {
		return 0, errkind.Wrap(err, errkind.Recoverable, "get next checkpoint sequence")
	}
	if !maxSeq.Valid {
		return 1, nil
	}
	return maxSeq.Int64 + 1, nil
}

// SaveCheckpoint appends a new checkpoint row; checkpoints are never
// updated in place, only superseded by a later sequence.
func (r *Repo) SaveCheckpoint(ctx context.Context, cp *roadmap.Checkpoint) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO checkpoints (task_id, sequence, node, suspended, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cp.TaskID, cp.Sequence, cp.Node, cp.Suspended, cp.Snapshot, cp.CreatedAt)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save checkpoint")
	}
	return nil
}

// LatestCheckpoint loads the highest-sequence checkpoint for a task.
func (r *Repo) LatestCheckpoint(ctx context.Context, taskID string) (*roadmap.Checkpoint, error) {
	var cp roadmap.Checkpoint
	err := r.tx.QueryRowxContext(ctx, `
		SELECT task_id, sequence, node, suspended, snapshot, created_at
		FROM checkpoints WHERE task_id = ? ORDER BY sequence DESC LIMIT 1`, taskID).Scan(
		&cp.TaskID, &cp.Sequence, &cp.Node, &cp.Suspended, &cp.Snapshot, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get latest checkpoint")
	}
	return &cp, nil
}

// DeleteCheckpoints removes every checkpoint row for a task, once a task
// reaches a terminal status and its snapshots are no longer needed.
func (r *Repo) DeleteCheckpoints(ctx context.Context, taskID string) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE task_id = ?`, taskID)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "delete checkpoints")
	}
	return nil
}
