package execlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(storage.New(db, 5*time.Second))
}

func TestLogWorkflowLifecycle(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()

	require.NoError(t, l.LogWorkflowStart(ctx, "task_1"))
	require.NoError(t, l.LogNodeTransition(ctx, "task_1", "intent_analysis"))
	require.NoError(t, l.LogAgent(ctx, "task_1", "intent_analysis", "intent-analyzer", "parsed goal", 120*time.Millisecond, false))
	require.NoError(t, l.LogConceptStart(ctx, "task_1", "concept-1", "Variables"))
	require.NoError(t, l.LogConceptComplete(ctx, "task_1", "concept-1"))
	require.NoError(t, l.LogWorkflowComplete(ctx, "task_1", roadmap.TaskCompleted))

	history, err := l.History(ctx, "task_1")
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "workflow started", history[0].Message)
	assert.Equal(t, roadmap.CategoryAgent, history[2].Category)
	assert.Equal(t, "workflow completed", history[5].Message)
}

func TestLogFailurePathsUseErrorLevel(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()

	require.NoError(t, l.LogConceptFailed(ctx, "task_2", "concept-2", "timeout"))
	require.NoError(t, l.LogWorkflowFailed(ctx, "task_2", "max rounds exceeded"))

	history, err := l.History(ctx, "task_2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, row := range history {
		assert.Equal(t, roadmap.LogError, row.Level)
	}
}
