// Package agents resolves workflow roles (one per node agent and per
// content sub-agent) to concrete model backends, and runs a single prompt
// turn against the resolved model. Prompting and retrieval strategy for
// each role are out of scope here — this package only owns the mapping
// from role to provider and the mechanics of invoking one turn.
package agents

import (
	"context"
	"fmt"

	"github.com/roadmap-ai/orchestrator/internal/config"
	"github.com/roadmap-ai/orchestrator/internal/models"
)

// Registry resolves a Role to a named model provider and invokes it.
type Registry struct {
	models *models.Registry
	roles  map[string]string
	byName string
}

// NewRegistry builds an agent registry over a model registry, using the
// role→provider mapping from config. A role with no explicit mapping uses
// the model registry's default provider.
func NewRegistry(modelsCfg config.ModelsConfig) *Registry {
	return &Registry{
		models: models.NewRegistry(modelsCfg),
		roles:  modelsCfg.Roles,
		byName: modelsCfg.Default,
	}
}

// providerFor returns the provider name backing a role.
func (r *Registry) providerFor(role Role) string {
	if name, ok := r.roles[string(role)]; ok && name != "" {
		return name
	}
	return r.byName
}

// Invoke runs a single prompt turn for the given role and returns the
// model's final text response.
func (r *Registry) Invoke(ctx context.Context, role Role, prompt string) (string, error) {
	providerName := r.providerFor(role)
	if providerName == "" {
		return "", fmt.Errorf("agents: no provider configured for role %q", role)
	}

	chatModel, err := r.models.Get(ctx, providerName)
	if err != nil {
		return "", fmt.Errorf("agents: resolve provider %q for role %q: %w", providerName, role, err)
	}

	text, err := runOnce(ctx, chatModel, Instruction(role), prompt)
	if err != nil {
		// Route every backend's error through the same classification
		// HandleError already applies to the Anthropic SDK path, so a node's
		// caller can make retry/escalate decisions off one errkind.Kind
		// regardless of which provider produced the failure.
		return "", models.HandleError(err)
	}
	return text, nil
}

// ContextWindow returns the context window of the provider backing a role.
func (r *Registry) ContextWindow(role Role) int {
	return r.models.ContextWindow(r.providerFor(role))
}
