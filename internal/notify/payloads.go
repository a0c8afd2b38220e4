package notify

import "encoding/json"

// Payload is implemented by every typed event payload in this package.
type Payload interface {
	EventType() EventType
}

// StatusPayload reports a task-level status transition.
type StatusPayload struct {
	Status string `json:"status"`
	Step   string `json:"step"`
}

func (StatusPayload) EventType() EventType { return EventStatus }

// ProgressPayload reports aggregate concept completion counts.
type ProgressPayload struct {
	CompletedConcepts int `json:"completed_concepts"`
	TotalConcepts     int `json:"total_concepts"`
}

func (ProgressPayload) EventType() EventType { return EventProgress }

// ConceptStartPayload announces a concept beginning content generation.
type ConceptStartPayload struct {
	ConceptID string `json:"concept_id"`
	Name      string `json:"name"`
}

func (ConceptStartPayload) EventType() EventType { return EventConceptStart }

// ConceptCompletePayload announces a concept's content finished successfully.
type ConceptCompletePayload struct {
	ConceptID string `json:"concept_id"`
}

func (ConceptCompletePayload) EventType() EventType { return EventConceptComplete }

// ConceptFailedPayload announces one or more of a concept's sub-artifacts failed.
type ConceptFailedPayload struct {
	ConceptID string `json:"concept_id"`
	Reason    string `json:"reason"`
}

func (ConceptFailedPayload) EventType() EventType { return EventConceptFailed }

// HumanReviewPayload announces a task is suspended awaiting review, along
// with the opaque token the review endpoint must echo back to resume it.
type HumanReviewPayload struct {
	ResumeToken string `json:"resume_token"`
}

func (HumanReviewPayload) EventType() EventType { return EventHumanReview }

// CompletedPayload announces terminal success (possibly with partial failure).
type CompletedPayload struct {
	RoadmapID string `json:"roadmap_id"`
	Status    string `json:"status"`
}

func (CompletedPayload) EventType() EventType { return EventCompleted }

// FailedPayload announces terminal failure.
type FailedPayload struct {
	Reason string `json:"reason"`
}

func (FailedPayload) EventType() EventType { return EventFailed }

// CancelledPayload announces a task was cancelled.
type CancelledPayload struct{}

func (CancelledPayload) EventType() EventType { return EventCancelled }

// PublishTyped marshals payload to a map and publishes it under its own EventType.
func (b *Bus) PublishTyped(taskID string, payload Payload) {
	b.Publish(taskID, payload.EventType(), toMap(payload))
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// ExtractPayload decodes an Event's Payload map back into a typed payload.
func ExtractPayload[T Payload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
