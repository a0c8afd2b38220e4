// Package execlog is the append-only, authoritative execution history for
// a task. Every row it writes is persisted through internal/storage, so
// unlike internal/notify's best-effort live stream, nothing here is ever
// dropped — it is the source of truth a client replays from when it asks
// for full history instead of just "what's new from here".
package execlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// Logger appends execution log rows for a task.
type Logger struct {
	uow *storage.UnitOfWork
}

// New builds a Logger backed by uow.
func New(uow *storage.UnitOfWork) *Logger {
	return &Logger{uow: uow}
}

func (l *Logger) append(ctx context.Context, row *roadmap.ExecutionLog) error {
	return l.uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.AppendLog(ctx, row)
	})
}

func detailsJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// LogWorkflowStart records the beginning of a task's run.
func (l *Logger) LogWorkflowStart(ctx context.Context, taskID string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogInfo, Category: roadmap.CategoryWorkflow,
		Message: "workflow started",
	})
}

// LogWorkflowComplete records successful (possibly partial) completion.
func (l *Logger) LogWorkflowComplete(ctx context.Context, taskID string, status roadmap.TaskStatus) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogSuccess, Category: roadmap.CategoryWorkflow,
		Message: "workflow completed", Details: detailsJSON(map[string]any{"status": status}),
	})
}

// LogWorkflowFailed records a terminal failure with its reason.
func (l *Logger) LogWorkflowFailed(ctx context.Context, taskID, reason string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogError, Category: roadmap.CategoryWorkflow,
		Message: "workflow failed", Details: detailsJSON(map[string]any{"reason": reason}),
	})
}

// LogNodeTransition records the executor moving into node, for the step
// column surfaced in status queries.
func (l *Logger) LogNodeTransition(ctx context.Context, taskID, node string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogInfo, Category: roadmap.CategoryWorkflow,
		Step: node, Message: "entering " + node,
	})
}

// LogAgent records one agent invocation's outcome and duration.
func (l *Logger) LogAgent(ctx context.Context, taskID, step, agentName, message string, duration time.Duration, failed bool) error {
	level := roadmap.LogInfo
	if failed {
		level = roadmap.LogError
	}
	ms := duration.Milliseconds()
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: level, Category: roadmap.CategoryAgent,
		Step: step, AgentName: agentName, Message: message, DurationMs: &ms,
	})
}

// LogConceptStart records a concept beginning content generation.
func (l *Logger) LogConceptStart(ctx context.Context, taskID, conceptID, name string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogInfo, Category: roadmap.CategoryConcept,
		Message: "concept generation started", Details: detailsJSON(map[string]any{"concept_id": conceptID, "name": name}),
	})
}

// LogConceptComplete records a concept's content completing successfully.
func (l *Logger) LogConceptComplete(ctx context.Context, taskID, conceptID string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogSuccess, Category: roadmap.CategoryConcept,
		Message: "concept generation completed", Details: detailsJSON(map[string]any{"concept_id": conceptID}),
	})
}

// LogConceptFailed records one or more of a concept's sub-artifacts failing.
func (l *Logger) LogConceptFailed(ctx context.Context, taskID, conceptID, reason string) error {
	return l.append(ctx, &roadmap.ExecutionLog{
		TaskID: taskID, Level: roadmap.LogError, Category: roadmap.CategoryConcept,
		Message: "concept generation failed", Details: detailsJSON(map[string]any{"concept_id": conceptID, "reason": reason}),
	})
}

// History returns the full, ordered execution log for a task, as served by
// the logs endpoint through Brain.ListTaskLogs. The live stream's
// include_history replay does not read it; that replay comes from the
// notification bus's in-memory ring buffer.
func (l *Logger) History(ctx context.Context, taskID string) ([]roadmap.ExecutionLog, error) {
	var rows []roadmap.ExecutionLog
	err := l.uow.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		var err error
		rows, err = repo.ListLogs(ctx, taskID)
		return err
	})
	return rows, err
}
