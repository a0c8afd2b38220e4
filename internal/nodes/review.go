package nodes

import (
	"context"
	"fmt"
)

// ReviewDecision is the human reviewer's choice on resume.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionModify  ReviewDecision = "modify"
)

// StartHumanReview is the suspending half of node R5: it marks the task
// pending review and hands the caller a resume token to expose to the
// reviewer. The graph executor is responsible for actually suspending the
// driving coroutine after this returns; this runner only persists state.
func (r *Runners) StartHumanReview(ctx context.Context, taskID, resumeToken string) error {
	if err := r.Brain.UpdateTaskToPendingReview(ctx, taskID, resumeToken); err != nil {
		return fmt.Errorf("human review: %w", err)
	}
	return nil
}

// CompleteHumanReview is the resuming half of node R5: given the
// reviewer's decision, it returns the task to processing and reports
// which branch the executor should take next.
func (r *Runners) CompleteHumanReview(ctx context.Context, taskID string, decision ReviewDecision, nextStep string) (ReviewDecision, error) {
	if decision != DecisionApprove && decision != DecisionModify {
		return "", fmt.Errorf("human review: invalid decision %q", decision)
	}
	if err := r.Brain.UpdateTaskAfterReview(ctx, taskID, nextStep); err != nil {
		return "", fmt.Errorf("human review: %w", err)
	}
	return decision, nil
}
