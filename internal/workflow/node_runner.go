package workflow

import (
	"context"

	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// NodeRunner is the narrow surface the executor needs from the six node
// runners. *nodes.Runners satisfies it; tests substitute a fake so a
// branch-logic test never calls a live model provider.
type NodeRunner interface {
	IntentAnalysis(ctx context.Context, taskID, userRequest string) (*roadmap.IntentAnalysis, string, error)
	CurriculumDesign(ctx context.Context, taskID, roadmapID, userID string, ia *roadmap.IntentAnalysis) (*roadmap.Roadmap, error)
	StructureValidation(ctx context.Context, taskID string, rm *roadmap.Roadmap, round int) (*roadmap.ValidationResult, error)
	RoadmapEdit(ctx context.Context, taskID string, rm *roadmap.Roadmap, source roadmap.EditSource, issues []roadmap.ValidationIssue, feedback string) (*roadmap.Roadmap, *roadmap.EditRecord, error)
	StartHumanReview(ctx context.Context, taskID, resumeToken string) error
	CompleteHumanReview(ctx context.Context, taskID string, decision nodes.ReviewDecision, nextStep string) (nodes.ReviewDecision, error)
	ContentGeneration(ctx context.Context, taskID, roadmapID string, engine *content.Engine, rm *roadmap.Roadmap) error
}

var _ NodeRunner = (*nodes.Runners)(nil)
