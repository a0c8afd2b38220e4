// Package roadmap holds the orchestrator's persisted data model: tasks,
// roadmaps and their structural tree, intent analyses, validation results,
// edit records, content artifacts, execution log rows, and checkpoints.
package roadmap

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a generation run.
type TaskStatus string

const (
	TaskPending             TaskStatus = "pending"
	TaskProcessing          TaskStatus = "processing"
	TaskHumanReviewPending  TaskStatus = "human_review_pending"
	TaskCompleted           TaskStatus = "completed"
	TaskPartialFailure      TaskStatus = "partial_failure"
	TaskFailed              TaskStatus = "failed"
	TaskCancelled           TaskStatus = "cancelled"
)

// Terminal reports whether the status is one of the absorbing end states.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskPartialFailure, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is one roadmap generation run.
type Task struct {
	TaskID       string     `db:"task_id" json:"task_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Title        string     `db:"title" json:"title"`
	Status       TaskStatus `db:"status" json:"status"`
	CurrentStep  string     `db:"current_step" json:"current_step"`
	RoadmapID    string     `db:"roadmap_id" json:"roadmap_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
}

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	u := uuid.New().String()
	return "task_" + strings.ReplaceAll(u[:8], "-", "")
}

// GenerateRoadmapID creates a provisional roadmap identifier, made unique
// later by Brain.EnsureUniqueRoadmapID.
func GenerateRoadmapID(title string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "roadmap"
	}
	return slug + "-" + uuid.New().String()[:8]
}

// GenerateNodeID creates a unique identifier for a stage, module, or
// concept, prefixed by kind (e.g. "stage", "module", "concept").
func GenerateNodeID(kind string) string {
	return kind + "_" + strings.ReplaceAll(uuid.New().String()[:12], "-", "")
}

// SubStatus is the state of one of a concept's three content artifacts.
type SubStatus string

const (
	SubPending    SubStatus = "pending"
	SubGenerating SubStatus = "generating"
	SubCompleted  SubStatus = "completed"
	SubFailed     SubStatus = "failed"
)

// OverallStatus is the derived rollup of a concept's three sub-statuses.
type OverallStatus string

const (
	OverallPending      OverallStatus = "pending"
	OverallGenerating   OverallStatus = "generating"
	OverallCompleted    OverallStatus = "completed"
	OverallPartialFailed OverallStatus = "partial_failed"
	OverallFailed       OverallStatus = "failed"
)

// Roadmap is the curriculum tree produced by curriculum design, possibly
// edited afterward.
type Roadmap struct {
	RoadmapID                 string  `db:"roadmap_id" json:"roadmap_id"`
	UserID                    string  `db:"user_id" json:"user_id"`
	Title                     string  `db:"title" json:"title"`
	TotalConcepts             int     `db:"total_concepts" json:"total_concepts"`
	TotalHours                float64 `db:"total_hours" json:"total_hours"`
	RecommendedCompletionWeeks int    `db:"recommended_completion_weeks" json:"recommended_completion_weeks"`
	Stages                    []Stage `db:"-" json:"stages"`
}

// Stage is a top-level phase of a roadmap.
type Stage struct {
	StageID        string   `db:"stage_id" json:"stage_id"`
	RoadmapID      string   `db:"roadmap_id" json:"roadmap_id"`
	Position       int      `db:"position" json:"position"`
	Name           string   `db:"name" json:"name"`
	Description    string   `db:"description" json:"description"`
	EstimatedHours float64  `db:"estimated_hours" json:"estimated_hours"`
	Modules        []Module `db:"-" json:"modules"`
}

// Module is an ordered group of concepts inside a stage.
type Module struct {
	ModuleID           string    `db:"module_id" json:"module_id"`
	StageID            string    `db:"stage_id" json:"stage_id"`
	Position           int       `db:"position" json:"position"`
	Name               string    `db:"name" json:"name"`
	Description        string    `db:"description" json:"description"`
	LearningObjectives []string  `db:"-" json:"learning_objectives"`
	Concepts           []Concept `db:"-" json:"concepts"`
}

// Concept is the smallest learning unit; it owns three content artifacts.
type Concept struct {
	ConceptID       string   `db:"concept_id" json:"concept_id"`
	ModuleID        string   `db:"module_id" json:"module_id"`
	Position        int      `db:"position" json:"position"`
	Name            string   `db:"name" json:"name"`
	Description     string   `db:"description" json:"description"`
	Difficulty      string   `db:"difficulty" json:"difficulty"`
	Keywords        []string `db:"-" json:"keywords"`
	ContentStatus   SubStatus `db:"content_status" json:"content_status"`
	ResourcesStatus SubStatus `db:"resources_status" json:"resources_status"`
	QuizStatus      SubStatus `db:"quiz_status" json:"quiz_status"`
}

// OverallStatus derives the concept's rollup status from its three
// sub-statuses, per the invariant:
//
//	completed      iff all three are completed
//	failed         iff all three are failed
//	partial_failed iff at least one completed and at least one failed
//	generating     iff any is generating (and neither of the above holds)
//	pending        otherwise
func (c Concept) OverallStatus() OverallStatus {
	subs := []SubStatus{c.ContentStatus, c.ResourcesStatus, c.QuizStatus}

	allCompleted, allFailed, anyCompleted, anyFailed, anyGenerating := true, true, false, false, false
	for _, s := range subs {
		if s != SubCompleted {
			allCompleted = false
		}
		if s != SubFailed {
			allFailed = false
		}
		if s == SubCompleted {
			anyCompleted = true
		}
		if s == SubFailed {
			anyFailed = true
		}
		if s == SubGenerating {
			anyGenerating = true
		}
	}

	switch {
	case allCompleted:
		return OverallCompleted
	case allFailed:
		return OverallFailed
	case anyCompleted && anyFailed:
		return OverallPartialFailed
	case anyGenerating:
		return OverallGenerating
	default:
		return OverallPending
	}
}

// IntentAnalysis is derived once from the user's request.
type IntentAnalysis struct {
	TaskID                  string   `db:"task_id" json:"task_id"`
	ParsedGoal              string   `db:"parsed_goal" json:"parsed_goal"`
	KeyTechnologies         []string `db:"-" json:"key_technologies"`
	DifficultyProfile       string   `db:"difficulty_profile" json:"difficulty_profile"`
	TimeConstraint          string   `db:"time_constraint" json:"time_constraint"`
	SkillGapAnalysis        []string `db:"-" json:"skill_gap_analysis"`
	PersonalizedSuggestions []string `db:"-" json:"personalized_suggestions"`
}

// IssueSeverity classifies a validation issue.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
)

// ValidationIssue is one structural problem found during validation.
type ValidationIssue struct {
	Severity   IssueSeverity `json:"severity"`
	Location   string        `json:"location"`
	Issue      string        `json:"issue"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// DimensionScore scores one validation dimension.
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// ValidationResult is the outcome of one structural-validation round.
type ValidationResult struct {
	TaskID                 string           `db:"task_id" json:"task_id"`
	RoadmapID              string           `db:"roadmap_id" json:"roadmap_id"`
	OverallScore           float64          `db:"overall_score" json:"overall_score"`
	DimensionScores         []DimensionScore `db:"-" json:"dimension_scores"`
	Issues                 []ValidationIssue `db:"-" json:"issues"`
	ImprovementSuggestions []string         `db:"-" json:"improvement_suggestions"`
	ValidationRound        int              `db:"validation_round" json:"validation_round"`
	IsValid                bool             `db:"is_valid" json:"is_valid"`
	ValidationSummary      string           `db:"validation_summary" json:"validation_summary"`
}

// EditSource distinguishes why a RoadmapEdit ran.
type EditSource string

const (
	EditSourceValidationFailed EditSource = "validation_failed"
	EditSourceHumanReview      EditSource = "human_review"
)

// EditRecord is produced whenever the roadmap is edited.
type EditRecord struct {
	TaskID          string     `db:"task_id" json:"task_id"`
	RoadmapID       string     `db:"roadmap_id" json:"roadmap_id"`
	EditSource      EditSource `db:"edit_source" json:"edit_source"`
	ModifiedNodeIDs []string   `db:"-" json:"modified_node_ids"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Resource is one recommended link surfaced for a concept.
type Resource struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// QuizQuestion is one multiple-choice question for a concept.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
}

// ContentArtifacts holds the three generated sub-artifacts for one concept.
type ContentArtifacts struct {
	ConceptID string         `db:"concept_id" json:"concept_id"`
	Tutorial  string         `db:"tutorial" json:"tutorial,omitempty"`
	Resources []Resource     `db:"-" json:"resources,omitempty"`
	Quiz      []QuizQuestion `db:"-" json:"quiz,omitempty"`
	Version   int            `db:"version" json:"version"`
}

// LogLevel is the severity of an execution log row.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogCategory groups execution log rows by origin.
type LogCategory string

const (
	CategoryWorkflow LogCategory = "workflow"
	CategoryAgent    LogCategory = "agent"
	CategoryConcept  LogCategory = "concept"
)

// ExecutionLog is one append-only row recording a step of execution.
type ExecutionLog struct {
	ID         int64       `db:"id" json:"id"`
	TaskID     string      `db:"task_id" json:"task_id"`
	Level      LogLevel    `db:"level" json:"level"`
	Category   LogCategory `db:"category" json:"category"`
	Step       string      `db:"step" json:"step,omitempty"`
	AgentName  string      `db:"agent_name" json:"agent_name,omitempty"`
	Message    string      `db:"message" json:"message"`
	Details    string      `db:"details" json:"details,omitempty"` // JSON-encoded
	DurationMs *int64      `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// Checkpoint is the durable per-task executor snapshot.
type Checkpoint struct {
	TaskID    string    `db:"task_id" json:"task_id"`
	Sequence  int64     `db:"sequence" json:"sequence"`
	Node      string    `db:"node" json:"node"`
	Suspended bool      `db:"suspended" json:"suspended"`
	Snapshot  []byte    `db:"snapshot" json:"snapshot"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
