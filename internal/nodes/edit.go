package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

type editResponse struct {
	Roadmap         curriculumResponse `json:"roadmap"`
	ModifiedNodeIDs []string           `json:"modified_node_ids"`
}

// RoadmapEdit is node R4: it applies either validation-driven fixes or
// human-review feedback to a roadmap, and returns the updated tree plus an
// edit record naming which source triggered the change.
func (r *Runners) RoadmapEdit(
	ctx context.Context,
	taskID string,
	rm *roadmap.Roadmap,
	source roadmap.EditSource,
	issues []roadmap.ValidationIssue,
	feedback string,
) (*roadmap.Roadmap, *roadmap.EditRecord, error) {
	encoded, err := json.Marshal(rm)
	if err != nil {
		return nil, nil, fmt.Errorf("roadmap edit: encode roadmap: %w", err)
	}

	var reason string
	switch source {
	case roadmap.EditSourceValidationFailed:
		issuesJSON, _ := json.Marshal(issues)
		reason = fmt.Sprintf("Structural validation found these issues:\n%s", issuesJSON)
	case roadmap.EditSourceHumanReview:
		reason = fmt.Sprintf("Human reviewer feedback:\n%s", feedback)
	}

	prompt := fmt.Sprintf(`Current roadmap:
%s

%s

Apply the minimal edit that addresses the input above. Respond with a single JSON object, no prose:
{"roadmap": {"title": string, "recommended_completion_weeks": int, "stages": [...]}, "modified_node_ids": [string]}
where "roadmap" has the same shape curriculum design produces.`, encoded, reason)

	text, err := r.Agents.Invoke(ctx, agents.RoleEdit, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("roadmap edit: %w", err)
	}

	var resp editResponse
	if err := parseJSON(text, &resp); err != nil {
		return nil, nil, fmt.Errorf("roadmap edit: %w", err)
	}

	edited := buildRoadmap(rm.RoadmapID, rm.UserID, resp.Roadmap)

	record := &roadmap.EditRecord{
		TaskID:          taskID,
		RoadmapID:       rm.RoadmapID,
		EditSource:      source,
		ModifiedNodeIDs: resp.ModifiedNodeIDs,
	}

	if err := r.Brain.SaveEdit(ctx, edited, record); err != nil {
		return nil, nil, fmt.Errorf("roadmap edit: save: %w", err)
	}

	return edited, record, nil
}
