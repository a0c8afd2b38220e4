// Package content runs the three content sub-agents (tutorial, resources,
// quiz) for every concept in a roadmap, bounded by a fixed concurrency
// limit, isolating one concept's sub-agent failure from the rest of the
// batch and from every other concept.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// AgentInvoker runs a single prompt turn for a role. agents.Registry
// satisfies this; tests substitute a fake to avoid a live model call.
type AgentInvoker interface {
	Invoke(ctx context.Context, role agents.Role, prompt string) (string, error)
}

// Engine fans a roadmap's concepts out across bounded concurrency, running
// each concept's three sub-agents in parallel and saving the result through
// Brain, which owns the partial-failure sub-status accounting and the
// per-concept event publish.
type Engine struct {
	Brain       *brain.Brain
	Agents      AgentInvoker
	Concurrency int
}

// New builds a content engine. concurrency must be at least 1; callers
// should pass config.WorkflowConfig.ContentConcurrency.
func New(b *brain.Brain, a AgentInvoker, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{Brain: b, Agents: a, Concurrency: concurrency}
}

// Run walks every concept in rm under the engine's concurrency bound and
// generates its content. It returns the terminal sub-status for the batch:
// "completed" if every concept's three sub-agents all succeeded, else
// "partial_failure". Run never aborts early on a single concept's failure.
func (e *Engine) Run(ctx context.Context, taskID string, rm *roadmap.Roadmap) (string, error) {
	type unit struct {
		concept roadmap.Concept
	}

	var units []unit
	for _, stage := range rm.Stages {
		for _, module := range stage.Modules {
			for _, c := range module.Concepts {
				units = append(units, unit{concept: c})
			}
		}
	}

	sem := make(chan struct{}, e.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	anyFailed := false

units:
	for _, u := range units {
		u := u
		select {
		case <-ctx.Done():
			break units
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			failed := e.runConcept(ctx, taskID, u.concept)
			if failed {
				mu.Lock()
				anyFailed = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if anyFailed {
		return "partial_failure", nil
	}
	return "completed", nil
}

// runConcept runs one concept's three sub-agents in parallel and saves the
// combined result. It reports whether any of the three sub-agents failed.
func (e *Engine) runConcept(ctx context.Context, taskID string, c roadmap.Concept) bool {
	_ = e.Brain.Log.LogConceptStart(ctx, taskID, c.ConceptID, c.Name)
	e.Brain.Bus.PublishTyped(taskID, notify.ConceptStartPayload{ConceptID: c.ConceptID, Name: c.Name})
	if err := e.Brain.MarkConceptGenerating(ctx, c.ConceptID); err != nil {
		return true
	}

	var wg sync.WaitGroup
	var tutorial string
	var tutorialErr error
	var resources []roadmap.Resource
	var resourcesErr error
	var quiz []roadmap.QuizQuestion
	var quizErr error

	wg.Add(3)
	go func() {
		defer wg.Done()
		tutorial, tutorialErr = e.generateTutorial(ctx, c)
	}()
	go func() {
		defer wg.Done()
		resources, resourcesErr = e.generateResources(ctx, c)
	}()
	go func() {
		defer wg.Done()
		quiz, quizErr = e.generateQuiz(ctx, c)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		// Cancelled mid-flight: discard this concept's results rather than
		// persisting a partial batch the caller no longer wants.
		return true
	}

	err := e.Brain.SaveContentResult(ctx, taskID, brain.ConceptContentResult{
		ConceptID:    c.ConceptID,
		Tutorial:     tutorial,
		TutorialErr:  tutorialErr,
		Resources:    resources,
		ResourcesErr: resourcesErr,
		Quiz:         quiz,
		QuizErr:      quizErr,
	})
	if err != nil {
		// Saving itself failed; treat the whole concept as failed even if
		// the sub-agents succeeded, since nothing was persisted.
		return true
	}

	return tutorialErr != nil || resourcesErr != nil || quizErr != nil
}

func (e *Engine) generateTutorial(ctx context.Context, c roadmap.Concept) (string, error) {
	prompt := fmt.Sprintf(`Concept: %s
Description: %s
Difficulty: %s

Write the tutorial. Respond with plain text, no JSON wrapper.`, c.Name, c.Description, c.Difficulty)

	text, err := e.Agents.Invoke(ctx, agents.RoleContentTutorial, prompt)
	if err != nil {
		return "", fmt.Errorf("content tutorial: %w", err)
	}
	return text, nil
}

type resourcesResponse struct {
	Resources []roadmap.Resource `json:"resources"`
}

func (e *Engine) generateResources(ctx context.Context, c roadmap.Concept) ([]roadmap.Resource, error) {
	prompt := fmt.Sprintf(`Concept: %s
Description: %s
Keywords: %v

Respond with a single JSON object, no prose:
{"resources": [{"type": string, "url": string, "title": string, "summary": string}]}`, c.Name, c.Description, c.Keywords)

	text, err := e.Agents.Invoke(ctx, agents.RoleContentResources, prompt)
	if err != nil {
		return nil, fmt.Errorf("content resources: %w", err)
	}

	var resp resourcesResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("content resources: parse response: %w", err)
	}
	return resp.Resources, nil
}

type quizResponse struct {
	Quiz []roadmap.QuizQuestion `json:"quiz"`
}

func (e *Engine) generateQuiz(ctx context.Context, c roadmap.Concept) ([]roadmap.QuizQuestion, error) {
	prompt := fmt.Sprintf(`Concept: %s
Description: %s
Difficulty: %s

Respond with a single JSON object, no prose:
{"quiz": [{"question": string, "choices": [string], "answer_index": int, "explanation": string}]}`, c.Name, c.Description, c.Difficulty)

	text, err := e.Agents.Invoke(ctx, agents.RoleContentQuiz, prompt)
	if err != nil {
		return nil, fmt.Errorf("content quiz: %w", err)
	}

	var resp quizResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("content quiz: parse response: %w", err)
	}
	return resp.Quiz, nil
}
