package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

func TestSweepOnceFailsStaleProcessingTasks(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()

	require.NoError(t, b.CreateTask(ctx, "task-stale", "user-1", "learn rust"))
	require.NoError(t, b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, "task-stale", roadmap.TaskProcessing, "curriculum_design", "")
	}))

	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)

	// A negative timeout pushes the cutoff into the future, so every
	// currently-processing task reads as stale without needing to
	// backdate its updated_at column.
	s := NewTimeoutSweeper(e, -time.Hour)
	s.sweepOnce(ctx)

	task, err := getTask(t, b, "task-stale")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "timeout")
}

func TestSweepOnceLeavesFreshProcessingTasksAlone(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()

	require.NoError(t, b.CreateTask(ctx, "task-fresh", "user-1", "learn rust"))
	require.NoError(t, b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, "task-fresh", roadmap.TaskProcessing, "curriculum_design", "")
	}))

	fr := &fakeRunner{b: b}
	e := New(b, fr, nil, 4, 3)
	s := NewTimeoutSweeper(e, time.Hour)
	s.sweepOnce(ctx)

	task, err := getTask(t, b, "task-fresh")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskProcessing, task.Status)
}
