package brain

import (
	"context"
	"errors"

	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
	"github.com/roadmap-ai/orchestrator/internal/storage"
)

// ConceptContentResult is what the fan-out engine hands Brain after
// running a concept's three sub-agents; each field's error is nil when
// that sub-agent succeeded.
type ConceptContentResult struct {
	ConceptID     string
	Tutorial      string
	TutorialErr   error
	Resources     []roadmap.Resource
	ResourcesErr  error
	Quiz          []roadmap.QuizQuestion
	QuizErr       error
}

// MarkConceptGenerating flips all three of a concept's sub-statuses to
// "generating" right before its sub-agents are launched, so a status query
// made while they're in flight observes something other than a stale
// "pending" left over from framework creation.
func (b *Brain) MarkConceptGenerating(ctx context.Context, conceptID string) error {
	return b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		if err := repo.UpdateConceptSubStatus(ctx, conceptID, "content", roadmap.SubGenerating); err != nil {
			return err
		}
		if err := repo.UpdateConceptSubStatus(ctx, conceptID, "resources", roadmap.SubGenerating); err != nil {
			return err
		}
		return repo.UpdateConceptSubStatus(ctx, conceptID, "quiz", roadmap.SubGenerating)
	})
}

// SaveContentResult persists whichever of a concept's three sub-artifacts
// succeeded, sets each sub-status independently, and publishes the
// concept-level event the partial-failure accounting calls for: complete
// only when all three succeeded, failed otherwise.
func (b *Brain) SaveContentResult(ctx context.Context, taskID string, res ConceptContentResult) error {
	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		version, err := repo.NextContentVersion(ctx, res.ConceptID)
		if err != nil {
			return err
		}
		if err := repo.SaveContentArtifacts(ctx, &roadmap.ContentArtifacts{
			ConceptID: res.ConceptID, Tutorial: res.Tutorial, Resources: res.Resources, Quiz: res.Quiz, Version: version,
		}); err != nil {
			return err
		}

		if err := repo.UpdateConceptSubStatus(ctx, res.ConceptID, "content", subStatusFor(res.TutorialErr)); err != nil {
			return err
		}
		if err := repo.UpdateConceptSubStatus(ctx, res.ConceptID, "resources", subStatusFor(res.ResourcesErr)); err != nil {
			return err
		}
		return repo.UpdateConceptSubStatus(ctx, res.ConceptID, "quiz", subStatusFor(res.QuizErr))
	})
	if err != nil {
		return err
	}

	if res.TutorialErr == nil && res.ResourcesErr == nil && res.QuizErr == nil {
		_ = b.Log.LogConceptComplete(ctx, taskID, res.ConceptID)
		b.Bus.PublishTyped(taskID, notify.ConceptCompletePayload{ConceptID: res.ConceptID})
	} else {
		reason := firstError(res.TutorialErr, res.ResourcesErr, res.QuizErr)
		_ = b.Log.LogConceptFailed(ctx, taskID, res.ConceptID, reason)
		b.Bus.PublishTyped(taskID, notify.ConceptFailedPayload{ConceptID: res.ConceptID, Reason: reason})
	}
	return nil
}

// LoadConceptForRetry loads a concept and its latest saved artifacts (if
// any), for callers that need to retry a single sub-artifact without
// clobbering the other two.
func (b *Brain) LoadConceptForRetry(ctx context.Context, conceptID string) (*roadmap.Concept, *roadmap.ContentArtifacts, error) {
	var concept *roadmap.Concept
	var artifacts *roadmap.ContentArtifacts

	err := b.UoW.Do(ctx, func(ctx context.Context, repo *storage.Repo) error {
		c, err := repo.GetConcept(ctx, conceptID)
		if err != nil {
			return err
		}
		concept = c

		a, err := repo.LatestContentArtifacts(ctx, conceptID)
		if err != nil {
			if errors.Is(err, storage.ErrContentNotFound) {
				artifacts = &roadmap.ContentArtifacts{ConceptID: conceptID}
				return nil
			}
			return err
		}
		artifacts = a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return concept, artifacts, nil
}

func subStatusFor(err error) roadmap.SubStatus {
	if err != nil {
		return roadmap.SubFailed
	}
	return roadmap.SubCompleted
}

func firstError(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}
