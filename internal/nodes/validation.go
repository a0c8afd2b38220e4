package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

type validationResponse struct {
	OverallScore           float64                    `json:"overall_score"`
	DimensionScores        []roadmap.DimensionScore   `json:"dimension_scores"`
	Issues                 []roadmap.ValidationIssue  `json:"issues"`
	ImprovementSuggestions []string                   `json:"improvement_suggestions"`
	IsValid                bool                       `json:"is_valid"`
	ValidationSummary      string                     `json:"validation_summary"`
}

// StructureValidation is node R3: it scores a roadmap's structural
// soundness and lists concrete issues. The executor reads IsValid and
// ValidationRound to decide the next branch (§ graph executor).
func (r *Runners) StructureValidation(ctx context.Context, taskID string, rm *roadmap.Roadmap, round int) (*roadmap.ValidationResult, error) {
	encoded, err := json.Marshal(rm)
	if err != nil {
		return nil, fmt.Errorf("structure validation: encode roadmap: %w", err)
	}

	prompt := fmt.Sprintf(`Roadmap to review:
%s

Respond with a single JSON object, no prose:
{"overall_score": number, "dimension_scores": [{"dimension": string, "score": number, "rationale": string}], "issues": [{"severity": "critical"|"warning", "location": string, "issue": string, "suggestion": string}], "improvement_suggestions": [string], "is_valid": bool, "validation_summary": string}`, encoded)

	text, err := r.Agents.Invoke(ctx, agents.RoleValidation, prompt)
	if err != nil {
		return nil, fmt.Errorf("structure validation: %w", err)
	}

	var resp validationResponse
	if err := parseJSON(text, &resp); err != nil {
		return nil, fmt.Errorf("structure validation: %w", err)
	}

	v := &roadmap.ValidationResult{
		TaskID:                 taskID,
		RoadmapID:              rm.RoadmapID,
		OverallScore:           resp.OverallScore,
		DimensionScores:        resp.DimensionScores,
		Issues:                 resp.Issues,
		ImprovementSuggestions: resp.ImprovementSuggestions,
		ValidationRound:        round,
		IsValid:                resp.IsValid,
		ValidationSummary:      resp.ValidationSummary,
	}

	if err := r.Brain.SaveValidationResult(ctx, v); err != nil {
		return nil, fmt.Errorf("structure validation: save: %w", err)
	}

	return v, nil
}
