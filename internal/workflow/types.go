// Package workflow is the graph executor: an explicit state machine that
// advances a task one node at a time, checkpointing after each boundary and
// suspending at HumanReview, rather than the coroutine/continuation shape a
// language with native async generators would use for the same graph.
package workflow

import (
	"encoding/json"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// Node identifies one step of the graph.
type Node string

const (
	NodeIntent      Node = "intent_analysis"
	NodeCurriculum  Node = "curriculum_design"
	NodeValidation  Node = "structure_validation"
	NodeEdit        Node = "roadmap_edit"
	NodeHumanReview Node = "human_review"
	NodeContent     Node = "content_generation"
)

// Snapshot is the durable state an executor needs to resume a task from any
// node boundary. It is what gets JSON-serialized into a checkpoint.
type Snapshot struct {
	UserID          string                   `json:"user_id"`
	UserRequest     string                   `json:"user_request"`
	RoadmapID       string                   `json:"roadmap_id"`
	IntentAnalysis  *roadmap.IntentAnalysis  `json:"intent_analysis,omitempty"`
	Roadmap         *roadmap.Roadmap         `json:"roadmap,omitempty"`
	ValidationRound int                      `json:"validation_round"`
	Validation      *roadmap.ValidationResult `json:"validation,omitempty"`
	EditSource      roadmap.EditSource       `json:"edit_source,omitempty"`
	ReviewFeedback  string                   `json:"review_feedback,omitempty"`
}

func (s *Snapshot) encode() []byte {
	data, _ := json.Marshal(s)
	return data
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// outcomeKind distinguishes what Step decided.
type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeSuspend
	outcomeTerminal
)

// Outcome is what a single Step call returns: advance to another node,
// suspend awaiting external input, or reach a terminal task status.
type Outcome struct {
	kind     outcomeKind
	next     Node
	snapshot *Snapshot
	reason   string
	status   roadmap.TaskStatus
}

func Continue(next Node, snapshot *Snapshot) Outcome {
	return Outcome{kind: outcomeContinue, next: next, snapshot: snapshot}
}

func Suspend(reason string, snapshot *Snapshot) Outcome {
	return Outcome{kind: outcomeSuspend, reason: reason, snapshot: snapshot}
}

func Terminal(status roadmap.TaskStatus) Outcome {
	return Outcome{kind: outcomeTerminal, status: status}
}
