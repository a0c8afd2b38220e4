package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// TimeoutSweeper periodically fails tasks that have sat in TaskProcessing
// past their soft node timeout without a Brain hook ever reporting back —
// the case a crashed or hung node execution leaves behind, since the
// cooperative per-call retry/backoff inside a node runner cannot observe a
// failure that killed the process outright.
type TimeoutSweeper struct {
	Executor *Executor
	Timeout  time.Duration

	cron *cron.Cron
}

// NewTimeoutSweeper builds a sweeper that checks every interval for tasks
// stuck past timeout.
func NewTimeoutSweeper(e *Executor, timeout time.Duration) *TimeoutSweeper {
	return &TimeoutSweeper{Executor: e, Timeout: timeout, cron: cron.New()}
}

// Start schedules the sweep to run every interval until Stop is called.
func (s *TimeoutSweeper) Start(ctx context.Context, interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cron.AddFunc(spec, func() { s.sweepOnce(ctx) })
	if err != nil {
		return fmt.Errorf("workflow: schedule timeout sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the sweep; in-flight sweeps finish.
func (s *TimeoutSweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *TimeoutSweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.Timeout)

	var stale []string
	err := s.Executor.Brain.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		tasks, err := repo.ListStaleProcessingTasks(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			stale = append(stale, t.TaskID)
		}
		return nil
	})
	if err != nil {
		return
	}

	for _, taskID := range stale {
		_ = s.Executor.Brain.FailTask(ctx, taskID, "node execution exceeded timeout without reporting back")
	}
}
