package nodes

import (
	"context"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// intentAnalysisResponse is the JSON shape requested from the model.
type intentAnalysisResponse struct {
	ParsedGoal              string   `json:"parsed_goal"`
	KeyTechnologies         []string `json:"key_technologies"`
	DifficultyProfile       string   `json:"difficulty_profile"`
	TimeConstraint          string   `json:"time_constraint"`
	SkillGapAnalysis        []string `json:"skill_gap_analysis"`
	PersonalizedSuggestions []string `json:"personalized_suggestions"`
}

// IntentAnalysis is node R1: it turns the learner's free-form request into
// a structured intent analysis and a unique provisional roadmap id.
func (r *Runners) IntentAnalysis(ctx context.Context, taskID, userRequest string) (*roadmap.IntentAnalysis, string, error) {
	prompt := fmt.Sprintf(`Learner request:
%s

Respond with a single JSON object, no prose, matching this shape:
{"parsed_goal": string, "key_technologies": [string], "difficulty_profile": string, "time_constraint": string, "skill_gap_analysis": [string], "personalized_suggestions": [string]}`, userRequest)

	text, err := r.Agents.Invoke(ctx, agents.RoleIntentAnalysis, prompt)
	if err != nil {
		return nil, "", fmt.Errorf("intent analysis: %w", err)
	}

	var resp intentAnalysisResponse
	if err := parseJSON(text, &resp); err != nil {
		return nil, "", fmt.Errorf("intent analysis: %w", err)
	}

	ia := &roadmap.IntentAnalysis{
		TaskID:                  taskID,
		ParsedGoal:              resp.ParsedGoal,
		KeyTechnologies:         resp.KeyTechnologies,
		DifficultyProfile:       resp.DifficultyProfile,
		TimeConstraint:          resp.TimeConstraint,
		SkillGapAnalysis:        resp.SkillGapAnalysis,
		PersonalizedSuggestions: resp.PersonalizedSuggestions,
	}

	if err := r.Brain.SaveIntentAnalysis(ctx, ia); err != nil {
		return nil, "", fmt.Errorf("intent analysis: save: %w", err)
	}

	roadmapID, err := r.Brain.EnsureUniqueRoadmapID(ctx, ia.ParsedGoal)
	if err != nil {
		return nil, "", fmt.Errorf("intent analysis: %w", err)
	}

	return ia, roadmapID, nil
}
