package checkpoint

import (
	"context"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// SQLiteCheckpointer stores checkpoints in the same database as the rest
// of the orchestrator's relational state, keyed by (task_id, sequence).
type SQLiteCheckpointer struct {
	uow *storage.UnitOfWork
}

// NewSQLiteCheckpointer builds a Checkpointer backed by uow.
func NewSQLiteCheckpointer(uow *storage.UnitOfWork) *SQLiteCheckpointer {
	return &SQLiteCheckpointer{uow: uow}
}

func (c *SQLiteCheckpointer) Save(ctx context.Context, taskID, node string, suspended bool, snapshot []byte) (*roadmap.Checkpoint, error) {
	var cp *roadmap.Checkpoint
	err := c.uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		seq, err := repo.NextCheckpointSequence(ctx, taskID)
		if err != nil {
			return err
		}
		cp = newCheckpoint(taskID, seq, node, suspended, snapshot)
		return repo.SaveCheckpoint(ctx, cp)
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (c *SQLiteCheckpointer) Latest(ctx context.Context, taskID string) (*roadmap.Checkpoint, error) {
	var cp *roadmap.Checkpoint
	err := c.uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		var err error
		cp, err = repo.LatestCheckpoint(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (c *SQLiteCheckpointer) Delete(ctx context.Context, taskID string) error {
	return c.uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.DeleteCheckpoints(ctx, taskID)
	})
}
