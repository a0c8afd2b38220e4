package checkpoint

import (
	"context"
	"errors"
	"sync"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage/dirstore"
)

const checkpointLogFile = "checkpoints.jsonl"

// ErrNotFound is returned by FileCheckpointer.Latest when a task has no
// saved checkpoint yet.
var ErrNotFound = errors.New("checkpoint not found")

// FileCheckpointer stores one append-only JSONL file per task under
// baseDir, appended to with dirstore.AppendJSONL (a plain append, not a
// temp-file rename); a mutex serialises Save, Latest and Delete within
// the process. It is the backend of choice for
// single-node deployments with no shared database.
type FileCheckpointer struct {
	mu sync.Mutex
	ds *dirstore.DirStore
}

// NewFileCheckpointer roots a FileCheckpointer at baseDir.
func NewFileCheckpointer(baseDir string) *FileCheckpointer {
	return &FileCheckpointer{ds: dirstore.NewDirStore(baseDir, "checkpoint")}
}

func (c *FileCheckpointer) Save(ctx context.Context, taskID, node string, suspended bool, snapshot []byte) (*roadmap.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ds.EnsureDir(taskID); err != nil {
		return nil, err
	}
	existing, err := dirstore.LoadJSONL[roadmap.Checkpoint](c.ds, taskID, checkpointLogFile)
	if err != nil {
		return nil, err
	}

	var seq int64 = 1
	if len(existing) > 0 {
		seq = existing[len(existing)-1].Sequence + 1
	}
	cp := newCheckpoint(taskID, seq, node, suspended, snapshot)
	if err := c.ds.AppendJSONL(taskID, checkpointLogFile, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (c *FileCheckpointer) Latest(ctx context.Context, taskID string) (*roadmap.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := dirstore.LoadJSONL[roadmap.Checkpoint](c.ds, taskID, checkpointLogFile)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	cp := items[len(items)-1]
	return &cp, nil
}

func (c *FileCheckpointer) Delete(ctx context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds.RemoveDir(taskID)
}
