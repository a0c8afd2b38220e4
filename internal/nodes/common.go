// Package nodes implements the six thin node runners of the workflow
// graph. The four agent-backed runners (R1-R4) each call exactly one
// agents.Registry role; HumanReview (R5) and ContentGeneration (R6) call
// no role directly. No runner touches storage, the execution log, or the
// notification bus directly: each persists its result through a
// brain.Brain helper.
package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/brain"
)

// Runners composes everything a node runner needs to call its agent and
// persist a delta through Brain.
type Runners struct {
	Brain  *brain.Brain
	Agents *agents.Registry
}

// New composes a Runners from its parts.
func New(b *brain.Brain, a *agents.Registry) *Runners {
	return &Runners{Brain: b, Agents: a}
}

// extractJSON strips a leading/trailing markdown code fence (some models
// wrap JSON answers in ```json ... ``` even when told not to) and returns
// the remaining text, trimmed.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func parseJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(extractJSON(text)), v); err != nil {
		return fmt.Errorf("nodes: parse agent response: %w", err)
	}
	return nil
}
