package storage

import (
	"context"
	"encoding/json"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// UpsertRoadmapFramework writes the roadmap tree (roadmap, stages, modules,
// concepts) for the first time or after an edit. Concepts not already
// present are created pending; existing concepts keep their sub-statuses.
func (r *Repo) UpsertRoadmapFramework(ctx context.Context, rm *roadmap.Roadmap) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO roadmaps (roadmap_id, user_id, title, total_concepts, total_hours, recommended_completion_weeks)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(roadmap_id) DO UPDATE SET
			title = excluded.title,
			total_concepts = excluded.total_concepts,
			total_hours = excluded.total_hours,
			recommended_completion_weeks = excluded.recommended_completion_weeks`,
		rm.RoadmapID, rm.UserID, rm.Title, rm.TotalConcepts, rm.TotalHours, rm.RecommendedCompletionWeeks)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "upsert roadmap")
	}

	for si, stage := range rm.Stages {
		if _, err := r.tx.ExecContext(ctx, `
			INSERT INTO stages (stage_id, roadmap_id, position, name, description, estimated_hours)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(stage_id) DO UPDATE SET position=excluded.position, name=excluded.name,
				description=excluded.description, estimated_hours=excluded.estimated_hours`,
			stage.StageID, rm.RoadmapID, si, stage.Name, stage.Description, stage.EstimatedHours); err != nil {
			return errkind.Wrap(err, errkind.Recoverable, "upsert stage")
		}

		for mi, mod := range stage.Modules {
			objectives, _ := json.Marshal(mod.LearningObjectives)
			if _, err := r.tx.ExecContext(ctx, `
				INSERT INTO modules (module_id, stage_id, position, name, description, learning_objectives)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(module_id) DO UPDATE SET position=excluded.position, name=excluded.name,
					description=excluded.description, learning_objectives=excluded.learning_objectives`,
				mod.ModuleID, stage.StageID, mi, mod.Name, mod.Description, string(objectives)); err != nil {
				return errkind.Wrap(err, errkind.Recoverable, "upsert module")
			}

			for ci, c := range mod.Concepts {
				keywords, _ := json.Marshal(c.Keywords)
				if err := r.upsertConcept(ctx, mod.ModuleID, ci, c, keywords); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Repo) upsertConcept(ctx context.Context, moduleID string, position int, c roadmap.Concept, keywords []byte) error {
	if c.ContentStatus == "" {
		c.ContentStatus = roadmap.SubPending
	}
	if c.ResourcesStatus == "" {
		c.ResourcesStatus = roadmap.SubPending
	}
	if c.QuizStatus == "" {
		c.QuizStatus = roadmap.SubPending
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO concepts (concept_id, module_id, position, name, description, difficulty, keywords,
			content_status, resources_status, quiz_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(concept_id) DO UPDATE SET module_id=excluded.module_id, position=excluded.position,
			name=excluded.name, description=excluded.description, difficulty=excluded.difficulty,
			keywords=excluded.keywords`,
		c.ConceptID, moduleID, position, c.Name, c.Description, c.Difficulty, string(keywords),
		c.ContentStatus, c.ResourcesStatus, c.QuizStatus)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "upsert concept")
	}
	return nil
}

// GetRoadmapTree loads the full stage/module/concept tree for a roadmap.
func (r *Repo) GetRoadmapTree(ctx context.Context, roadmapID string) (*roadmap.Roadmap, error) {
	var rm roadmap.Roadmap
	err := r.tx.QueryRowxContext(ctx, `
		SELECT roadmap_id, user_id, title, total_concepts, total_hours, recommended_completion_weeks
		FROM roadmaps WHERE roadmap_id = ?`, roadmapID).Scan(
		&rm.RoadmapID, &rm.UserID, &rm.Title, &rm.TotalConcepts, &rm.TotalHours, &rm.RecommendedCompletionWeeks)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get roadmap")
	}

	stageRows, err := r.tx.QueryxContext(ctx, `
		SELECT stage_id, position, name, description, estimated_hours FROM stages
		WHERE roadmap_id = ? ORDER BY position`, roadmapID)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "list stages")
	}
	defer stageRows.Close()

	for stageRows.Next() {
		var s roadmap.Stage
		if err := stageRows.Scan(&s.StageID, &s.Position, &s.Name, &s.Description, &s.EstimatedHours); err != nil {
			return nil, errkind.Wrap(err, errkind.Recoverable, "scan stage")
		}
		s.RoadmapID = roadmapID

		modRows, err := r.tx.QueryxContext(ctx, `
			SELECT module_id, position, name, description, learning_objectives FROM modules
			WHERE stage_id = ? ORDER BY position`, s.StageID)
		if err != nil {
			return nil, errkind.Wrap(err, errkind.Recoverable, "list modules")
		}
		for modRows.Next() {
			var m roadmap.Module
			var objectivesJSON string
			if err := modRows.Scan(&m.ModuleID, &m.Position, &m.Name, &m.Description, &objectivesJSON); err != nil {
				modRows.Close()
				return nil, errkind.Wrap(err, errkind.Recoverable, "scan module")
			}
			_ = json.Unmarshal([]byte(objectivesJSON), &m.LearningObjectives)
			m.StageID = s.StageID

			concepts, err := r.listConcepts(ctx, m.ModuleID)
			if err != nil {
				modRows.Close()
				return nil, err
			}
			m.Concepts = concepts
			s.Modules = append(s.Modules, m)
		}
		modRows.Close()

		rm.Stages = append(rm.Stages, s)
	}
	return &rm, nil
}

func (r *Repo) listConcepts(ctx context.Context, moduleID string) ([]roadmap.Concept, error) {
	rows, err := r.tx.QueryxContext(ctx, `
		SELECT concept_id, position, name, description, difficulty, keywords,
			content_status, resources_status, quiz_status
		FROM concepts WHERE module_id = ? ORDER BY position`, moduleID)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "list concepts")
	}
	defer rows.Close()

	var out []roadmap.Concept
	for rows.Next() {
		var c roadmap.Concept
		var keywordsJSON string
		if err := rows.Scan(&c.ConceptID, &c.Position, &c.Name, &c.Description, &c.Difficulty, &keywordsJSON,
			&c.ContentStatus, &c.ResourcesStatus, &c.QuizStatus); err != nil {
			return nil, errkind.Wrap(err, errkind.Recoverable, "scan concept")
		}
		_ = json.Unmarshal([]byte(keywordsJSON), &c.Keywords)
		c.ModuleID = moduleID
		out = append(out, c)
	}
	return out, nil
}

// UpdateConceptSubStatus updates one of a concept's three sub-statuses.
func (r *Repo) UpdateConceptSubStatus(ctx context.Context, conceptID string, field string, status roadmap.SubStatus) error {
	var column string
	switch field {
	case "content":
		column = "content_status"
	case "resources":
		column = "resources_status"
	case "quiz":
		column = "quiz_status"
	default:
		return errkind.New(errkind.Validation, "unknown content field: "+field)
	}
	_, err := r.tx.ExecContext(ctx, `UPDATE concepts SET `+column+` = ? WHERE concept_id = ?`, status, conceptID)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "update concept sub-status")
	}
	return nil
}

// GetConcept loads a single concept by id.
func (r *Repo) GetConcept(ctx context.Context, conceptID string) (*roadmap.Concept, error) {
	var c roadmap.Concept
	var keywordsJSON string
	err := r.tx.QueryRowxContext(ctx, `
		SELECT concept_id, module_id, position, name, description, difficulty, keywords,
			content_status, resources_status, quiz_status
		FROM concepts WHERE concept_id = ?`, conceptID).Scan(
		&c.ConceptID, &c.ModuleID, &c.Position, &c.Name, &c.Description, &c.Difficulty, &keywordsJSON,
		&c.ContentStatus, &c.ResourcesStatus, &c.QuizStatus)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get concept")
	}
	_ = json.Unmarshal([]byte(keywordsJSON), &c.Keywords)
	return &c, nil
}

// SaveIntentAnalysis upserts the task's intent analysis row.
func (r *Repo) SaveIntentAnalysis(ctx context.Context, ia *roadmap.IntentAnalysis) error {
	techs, _ := json.Marshal(ia.KeyTechnologies)
	gaps, _ := json.Marshal(ia.SkillGapAnalysis)
	suggestions, _ := json.Marshal(ia.PersonalizedSuggestions)
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO intent_analyses (task_id, parsed_goal, key_technologies, difficulty_profile, time_constraint,
			skill_gap_analysis, personalized_suggestions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET parsed_goal=excluded.parsed_goal, key_technologies=excluded.key_technologies,
			difficulty_profile=excluded.difficulty_profile, time_constraint=excluded.time_constraint,
			skill_gap_analysis=excluded.skill_gap_analysis, personalized_suggestions=excluded.personalized_suggestions`,
		ia.TaskID, ia.ParsedGoal, string(techs), ia.DifficultyProfile, ia.TimeConstraint, string(gaps), string(suggestions))
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save intent analysis")
	}
	return nil
}

// SaveValidationResult inserts one validation round's result.
func (r *Repo) SaveValidationResult(ctx context.Context, v *roadmap.ValidationResult) error {
	scores, _ := json.Marshal(v.DimensionScores)
	issues, _ := json.Marshal(v.Issues)
	suggestions, _ := json.Marshal(v.ImprovementSuggestions)
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO validation_results (task_id, roadmap_id, overall_score, dimension_scores, issues,
			improvement_suggestions, validation_round, is_valid, validation_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, validation_round) DO UPDATE SET overall_score=excluded.overall_score,
			dimension_scores=excluded.dimension_scores, issues=excluded.issues,
			improvement_suggestions=excluded.improvement_suggestions, is_valid=excluded.is_valid,
			validation_summary=excluded.validation_summary`,
		v.TaskID, v.RoadmapID, v.OverallScore, string(scores), string(issues), string(suggestions),
		v.ValidationRound, v.IsValid, v.ValidationSummary)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save validation result")
	}
	return nil
}

// LatestValidationResult returns the highest-round validation result for a task, if any.
func (r *Repo) LatestValidationResult(ctx context.Context, taskID string) (*roadmap.ValidationResult, error) {
	var v roadmap.ValidationResult
	var scores, issues, suggestions string
	err := r.tx.QueryRowxContext(ctx, `
		SELECT task_id, roadmap_id, overall_score, dimension_scores, issues, improvement_suggestions,
			validation_round, is_valid, validation_summary
		FROM validation_results WHERE task_id = ? ORDER BY validation_round DESC LIMIT 1`, taskID).Scan(
		&v.TaskID, &v.RoadmapID, &v.OverallScore, &scores, &issues, &suggestions,
		&v.ValidationRound, &v.IsValid, &v.ValidationSummary)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get latest validation result")
	}
	_ = json.Unmarshal([]byte(scores), &v.DimensionScores)
	_ = json.Unmarshal([]byte(issues), &v.Issues)
	_ = json.Unmarshal([]byte(suggestions), &v.ImprovementSuggestions)
	return &v, nil
}

// SaveEditRecord appends one edit record.
func (r *Repo) SaveEditRecord(ctx context.Context, e *roadmap.EditRecord) error {
	nodeIDs, _ := json.Marshal(e.ModifiedNodeIDs)
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO edit_records (task_id, roadmap_id, edit_source, modified_node_ids, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.TaskID, e.RoadmapID, e.EditSource, string(nodeIDs), e.CreatedAt)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save edit record")
	}
	return nil
}

// CountEditRecordsBySource counts prior edits of a given source for a task.
func (r *Repo) CountEditRecordsBySource(ctx context.Context, taskID string, source roadmap.EditSource) (int, error) {
	var n int
	err := r.tx.QueryRowxContext(ctx, `SELECT COUNT(1) FROM edit_records WHERE task_id = ? AND edit_source = ?`, taskID, source).Scan(&n)
	if err != nil {
		return 0, errkind.Wrap(err, errkind.Recoverable, "count edit records")
	}
	return n, nil
}
