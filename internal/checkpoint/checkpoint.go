// Package checkpoint persists per-task executor snapshots so a suspended
// or crashed task can resume exactly where it left off. Two interchangeable
// backends are provided (sqlite-backed, sharing the main database, and a
// local-file backend for deployments without a shared database), both
// satisfying the same Checkpointer interface, with an optional
// encryption-at-rest wrapper around either one.
package checkpoint

import (
	"context"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// Checkpointer saves and loads the durable snapshot an executor needs to
// resume a task from its last completed boundary.
type Checkpointer interface {
	// Save appends a new checkpoint for taskID at the next sequence number.
	Save(ctx context.Context, taskID, node string, suspended bool, snapshot []byte) (*roadmap.Checkpoint, error)
	// Latest loads the most recent checkpoint for taskID.
	Latest(ctx context.Context, taskID string) (*roadmap.Checkpoint, error)
	// Delete removes every checkpoint for taskID, once it reaches a terminal status.
	Delete(ctx context.Context, taskID string) error
}

func newCheckpoint(taskID string, sequence int64, node string, suspended bool, snapshot []byte) *roadmap.Checkpoint {
	return &roadmap.Checkpoint{
		TaskID:    taskID,
		Sequence:  sequence,
		Node:      node,
		Suspended: suspended,
		Snapshot:  snapshot,
		CreatedAt: time.Now(),
	}
}
