package nodes

import (
	"context"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// ContentGeneration is node R6: it fans a roadmap's concepts out across the
// content engine's bounded concurrency and reports the task's terminal
// status. Unlike R1-R5 it never calls an agents.Registry role directly —
// its whole body is the fan-out itself, delegated to internal/content.
func (r *Runners) ContentGeneration(ctx context.Context, taskID, roadmapID string, engine *content.Engine, rm *roadmap.Roadmap) error {
	status, err := engine.Run(ctx, taskID, rm)
	if err != nil {
		return fmt.Errorf("content generation: %w", err)
	}

	var taskStatus roadmap.TaskStatus
	switch status {
	case "completed":
		taskStatus = roadmap.TaskCompleted
	case "partial_failure":
		taskStatus = roadmap.TaskPartialFailure
	default:
		return fmt.Errorf("content generation: unexpected batch status %q", status)
	}

	if err := r.Brain.CompleteTask(ctx, taskID, roadmapID, taskStatus); err != nil {
		return fmt.Errorf("content generation: %w", err)
	}
	return nil
}
