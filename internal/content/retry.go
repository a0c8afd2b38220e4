package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// ContentType names one of a concept's three independently retriable
// sub-artifacts.
type ContentType string

const (
	ContentTypeTutorial  ContentType = "content"
	ContentTypeResources ContentType = "resources"
	ContentTypeQuiz      ContentType = "quiz"
)

// Retry regenerates a single sub-artifact for a single concept, leaving the
// other two untouched. It publishes the same concept_start/concept_complete
// (or concept_failed) events runConcept does, scoped to this one concept.
func (e *Engine) Retry(ctx context.Context, taskID, conceptID string, contentType ContentType) error {
	c, existing, err := e.Brain.LoadConceptForRetry(ctx, conceptID)
	if err != nil {
		return fmt.Errorf("content retry: load concept: %w", err)
	}

	_ = e.Brain.Log.LogConceptStart(ctx, taskID, c.ConceptID, c.Name)
	e.Brain.Bus.PublishTyped(taskID, notify.ConceptStartPayload{ConceptID: c.ConceptID, Name: c.Name})

	// An untouched artifact whose sub-status was failed before this retry
	// stays failed; the other untouched ones are recorded as completed,
	// since existing only holds content that already saved successfully.
	result := brain.ConceptContentResult{
		ConceptID: conceptID,
		Tutorial:  existing.Tutorial,
		Resources: existing.Resources,
		Quiz:      existing.Quiz,
	}
	notRetried := errors.New("not regenerated by this retry")
	if c.ContentStatus == roadmap.SubFailed {
		result.TutorialErr = notRetried
	}
	if c.ResourcesStatus == roadmap.SubFailed {
		result.ResourcesErr = notRetried
	}
	if c.QuizStatus == roadmap.SubFailed {
		result.QuizErr = notRetried
	}

	switch contentType {
	case ContentTypeTutorial:
		result.Tutorial, result.TutorialErr = e.generateTutorial(ctx, *c)
	case ContentTypeResources:
		result.Resources, result.ResourcesErr = e.generateResources(ctx, *c)
	case ContentTypeQuiz:
		result.Quiz, result.QuizErr = e.generateQuiz(ctx, *c)
	default:
		return fmt.Errorf("content retry: unknown content type %q", contentType)
	}

	if err := e.Brain.SaveContentResult(ctx, taskID, result); err != nil {
		return fmt.Errorf("content retry: save: %w", err)
	}
	return nil
}
