package nodes

import (
	"context"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

type conceptResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Difficulty  string   `json:"difficulty"`
	Keywords    []string `json:"keywords"`
}

type moduleResponse struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	LearningObjectives []string          `json:"learning_objectives"`
	Concepts           []conceptResponse `json:"concepts"`
}

type stageResponse struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	EstimatedHours float64          `json:"estimated_hours"`
	Modules        []moduleResponse `json:"modules"`
}

type curriculumResponse struct {
	Title                      string          `json:"title"`
	RecommendedCompletionWeeks int             `json:"recommended_completion_weeks"`
	Stages                     []stageResponse `json:"stages"`
}

// CurriculumDesign is node R2: it turns an intent analysis into a roadmap
// tree (stages -> modules -> concepts) and persists it.
func (r *Runners) CurriculumDesign(ctx context.Context, taskID, roadmapID, userID string, ia *roadmap.IntentAnalysis) (*roadmap.Roadmap, error) {
	prompt := fmt.Sprintf(`Intent analysis:
goal: %s
technologies: %v
difficulty: %s
time constraint: %s

Design a learning roadmap. Respond with a single JSON object, no prose:
{"title": string, "recommended_completion_weeks": int, "stages": [{"name": string, "description": string, "estimated_hours": number, "modules": [{"name": string, "description": string, "learning_objectives": [string], "concepts": [{"name": string, "description": string, "difficulty": string, "keywords": [string]}]}]}]}`,
		ia.ParsedGoal, ia.KeyTechnologies, ia.DifficultyProfile, ia.TimeConstraint)

	text, err := r.Agents.Invoke(ctx, agents.RoleCurriculumDesign, prompt)
	if err != nil {
		return nil, fmt.Errorf("curriculum design: %w", err)
	}

	var resp curriculumResponse
	if err := parseJSON(text, &resp); err != nil {
		return nil, fmt.Errorf("curriculum design: %w", err)
	}

	rm := buildRoadmap(roadmapID, userID, resp)

	if err := r.Brain.SaveRoadmapFramework(ctx, taskID, rm); err != nil {
		return nil, fmt.Errorf("curriculum design: save: %w", err)
	}

	return rm, nil
}

func buildRoadmap(roadmapID, userID string, resp curriculumResponse) *roadmap.Roadmap {
	rm := &roadmap.Roadmap{
		RoadmapID:                  roadmapID,
		UserID:                     userID,
		Title:                      resp.Title,
		RecommendedCompletionWeeks: resp.RecommendedCompletionWeeks,
	}

	totalConcepts := 0
	totalHours := 0.0

	for stagePos, s := range resp.Stages {
		stage := roadmap.Stage{
			StageID:        roadmap.GenerateNodeID("stage"),
			RoadmapID:      roadmapID,
			Position:       stagePos,
			Name:           s.Name,
			Description:    s.Description,
			EstimatedHours: s.EstimatedHours,
		}
		totalHours += s.EstimatedHours

		for modPos, m := range s.Modules {
			module := roadmap.Module{
				ModuleID:           roadmap.GenerateNodeID("module"),
				StageID:            stage.StageID,
				Position:           modPos,
				Name:               m.Name,
				Description:        m.Description,
				LearningObjectives: m.LearningObjectives,
			}

			for conPos, c := range m.Concepts {
				module.Concepts = append(module.Concepts, roadmap.Concept{
					ConceptID:       roadmap.GenerateNodeID("concept"),
					ModuleID:        module.ModuleID,
					Position:        conPos,
					Name:            c.Name,
					Description:     c.Description,
					Difficulty:      c.Difficulty,
					Keywords:        c.Keywords,
					ContentStatus:   roadmap.SubPending,
					ResourcesStatus: roadmap.SubPending,
					QuizStatus:      roadmap.SubPending,
				})
				totalConcepts++
			}

			stage.Modules = append(stage.Modules, module)
		}

		rm.Stages = append(rm.Stages, stage)
	}

	rm.TotalConcepts = totalConcepts
	rm.TotalHours = totalHours

	return rm
}
