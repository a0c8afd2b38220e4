// Package brain is the single place every node runner goes through to
// touch persisted state. It owns the node-execution scope (mirroring the
// "context manager around node execution" design note), and a small set
// of idempotent transactional helpers so no node runner ever opens its
// own UnitOfWork directly.
package brain

import (
	"context"
	"time"

	"github.com/roadmap-ai/orchestrator/internal/checkpoint"
	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/execlog"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/statemgr"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// Brain composes the persistence, logging, live-stream, and in-memory
// state pieces a workflow execution needs.
type Brain struct {
	UoW          *storage.UnitOfWork
	Checkpoints  checkpoint.Checkpointer
	States       *statemgr.Manager
	Log          *execlog.Logger
	Bus          *notify.Bus
}

// New composes a Brain from its parts.
func New(uow *storage.UnitOfWork, checkpoints checkpoint.Checkpointer, states *statemgr.Manager, log *execlog.Logger, bus *notify.Bus) *Brain {
	return &Brain{UoW: uow, Checkpoints: checkpoints, States: states, Log: log, Bus: bus}
}

// CreateTask inserts a new task row in TaskPending and logs the workflow
// start. It is the entry point the API layer calls before handing taskID to
// the graph executor.
func (b *Brain) CreateTask(ctx context.Context, taskID, userID, title string) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.CreateTask(ctx, &roadmap.Task{TaskID: taskID, UserID: userID, Title: title, Status: roadmap.TaskPending})
	})
	if err != nil {
		return err
	}
	return b.Log.LogWorkflowStart(ctx, taskID)
}

// NodeExecution marks taskID as executing node, persists that transition to
// the task row (unless the task is suspended in human_review_pending, which
// a concurrent transition must not clobber), logs it, and publishes a status
// event. The returned exit func must be deferred by the caller with the
// node's outcome (nil on success); it records the matching log row. Live-step
// tracking is cleared by whichever Brain method moves the task to its next
// resting state (CompleteTask, FailTask, CancelTask, UpdateTaskToPendingReview).
func (b *Brain) NodeExecution(ctx context.Context, taskID, nodeName string) (exit func(err error), err error) {
	b.States.SetLiveStep(taskID, nodeName)
	if err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		t, err := repo.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status == roadmap.TaskHumanReviewPending {
			return nil
		}
		return repo.UpdateTaskStatus(ctx, taskID, roadmap.TaskProcessing, nodeName, "")
	}); err != nil {
		return nil, err
	}
	if err := b.Log.LogNodeTransition(ctx, taskID, nodeName); err != nil {
		return nil, err
	}
	b.Bus.PublishTyped(taskID, notify.StatusPayload{Status: "processing", Step: nodeName})

	start := time.Now()
	return func(nodeErr error) {
		duration := time.Since(start)
		if nodeErr != nil {
			_ = b.Log.LogAgent(ctx, taskID, nodeName, nodeName, "node failed: "+nodeErr.Error(), duration, true)
			return
		}
		_ = b.Log.LogAgent(ctx, taskID, nodeName, nodeName, "node completed", duration, false)
	}, nil
}

// EnsureUniqueRoadmapID generates a roadmap id for title and retries with
// a fresh suffix on the astronomically unlikely event of a collision.
func (b *Brain) EnsureUniqueRoadmapID(ctx context.Context, title string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate := roadmap.GenerateRoadmapID(title)
		var exists bool
		err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
			var err error
			exists, err = repo.RoadmapIDExists(ctx, candidate)
			return err
		})
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errkind.New(errkind.System, "could not generate a unique roadmap id after 5 attempts")
}

// SaveIntentAnalysis persists the intent-analysis node's output.
func (b *Brain) SaveIntentAnalysis(ctx context.Context, ia *roadmap.IntentAnalysis) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.SaveIntentAnalysis(ctx, ia)
	})
}

// SaveRoadmapFramework upserts the roadmap tree and links it to taskID, in
// one transaction so a crash between the two never leaves a task pointing
// at a roadmap id that doesn't exist yet.
func (b *Brain) SaveRoadmapFramework(ctx context.Context, taskID string, rm *roadmap.Roadmap) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		if err := repo.UpsertRoadmapFramework(ctx, rm); err != nil {
			return err
		}
		return repo.SetTaskRoadmapID(ctx, taskID, rm.RoadmapID)
	})
}

// SaveValidationResult persists one structural-validation round's outcome.
func (b *Brain) SaveValidationResult(ctx context.Context, v *roadmap.ValidationResult) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.SaveValidationResult(ctx, v)
	})
}

// SaveEdit persists an edit record and the edited roadmap tree together,
// so an edit is all-or-nothing from a resumed task's point of view.
func (b *Brain) SaveEdit(ctx context.Context, rm *roadmap.Roadmap, edit *roadmap.EditRecord) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		if err := repo.UpsertRoadmapFramework(ctx, rm); err != nil {
			return err
		}
		return repo.SaveEditRecord(ctx, edit)
	})
}

// UpdateTaskToPendingReview suspends taskID awaiting a human decision and
// publishes the resume token the review endpoint must echo back.
func (b *Brain) UpdateTaskToPendingReview(ctx context.Context, taskID, resumeToken string) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, taskID, roadmap.TaskHumanReviewPending, "human_review", "")
	})
	if err != nil {
		return err
	}
	b.States.Clear(taskID)
	b.Bus.PublishTyped(taskID, notify.HumanReviewPayload{ResumeToken: resumeToken})
	return nil
}

// UpdateTaskAfterReview resumes a suspended task into nextStep once a
// human decision has been recorded.
func (b *Brain) UpdateTaskAfterReview(ctx context.Context, taskID, nextStep string) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, taskID, roadmap.TaskProcessing, nextStep, "")
	})
}

// CompleteTask marks a task terminal-successful, deletes its now-unneeded
// checkpoints, and publishes completion.
func (b *Brain) CompleteTask(ctx context.Context, taskID, roadmapID string, status roadmap.TaskStatus) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, taskID, status, "", "")
	})
	if err != nil {
		return err
	}
	b.States.Clear(taskID)
	_ = b.Checkpoints.Delete(ctx, taskID)
	_ = b.Log.LogWorkflowComplete(ctx, taskID, status)
	b.Bus.PublishTyped(taskID, notify.CompletedPayload{RoadmapID: roadmapID, Status: string(status)})
	return nil
}

// CancelTask marks a task terminal-cancelled. Checkpoints are left intact
// rather than deleted, matching FailTask's diagnostic-retention choice,
// since a cancelled task's last snapshot is occasionally useful to inspect.
func (b *Brain) CancelTask(ctx context.Context, taskID string) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, taskID, roadmap.TaskCancelled, "", "")
	})
	if err != nil {
		return err
	}
	b.States.Clear(taskID)
	_ = b.Log.LogWorkflowComplete(ctx, taskID, roadmap.TaskCancelled)
	b.Bus.PublishTyped(taskID, notify.CancelledPayload{})
	return nil
}

// GetTask reads a task row for a status query.
func (b *Brain) GetTask(ctx context.Context, taskID string) (*roadmap.Task, error) {
	var t *roadmap.Task
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		var err error
		t, err = repo.GetTask(ctx, taskID)
		return err
	})
	return t, err
}

// ResolveTaskIDForRoadmap resolves a roadmap id back to the task that
// produced it, for the retry endpoint which is addressed by roadmap id.
func (b *Brain) ResolveTaskIDForRoadmap(ctx context.Context, roadmapID string) (string, error) {
	var taskID string
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		var err error
		taskID, err = repo.GetTaskIDByRoadmapID(ctx, roadmapID)
		return err
	})
	return taskID, err
}

// ListTaskLogs returns a task's full execution log, oldest first.
func (b *Brain) ListTaskLogs(ctx context.Context, taskID string) ([]roadmap.ExecutionLog, error) {
	return b.Log.History(ctx, taskID)
}

// FailTask marks a task terminal-failed and publishes the failure reason.
func (b *Brain) FailTask(ctx context.Context, taskID, reason string) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		return repo.UpdateTaskStatus(ctx, taskID, roadmap.TaskFailed, "", reason)
	})
	if err != nil {
		return err
	}
	b.States.Clear(taskID)
	_ = b.Log.LogWorkflowFailed(ctx, taskID, reason)
	b.Bus.PublishTyped(taskID, notify.FailedPayload{Reason: reason})
	return nil
}
