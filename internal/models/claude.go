package models

import (
	"context"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/roadmap-ai/orchestrator/internal/config"
)

const defaultClaudeModel = "claude-sonnet-4-6"

// NewClaude creates a new Anthropic ChatModel via eino-ext's claude component.
// This is distinct from NewAnthropic, which calls anthropic-sdk-go directly;
// this path is used when
// a node role is happy with the plain eino ChatModelAgent integration.
func NewClaude(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultClaudeModel
	}

	modelConfig := &einoclaude.Config{
		APIKey: auth.Value,
		Model:  modelName,
	}

	if cfg.BaseURL != "" {
		modelConfig.BaseURL = &cfg.BaseURL
	}

	if cfg.MaxTokens > 0 {
		modelConfig.MaxTokens = cfg.MaxTokens
	} else {
		modelConfig.MaxTokens = defaultAnthropicMaxTokens
	}

	if cfg.Options != nil {
		if temp, ok := cfg.Options["temperature"].(float64); ok {
			t := float32(temp)
			modelConfig.Temperature = &t
		}
	}

	return einoclaude.NewChatModel(ctx, modelConfig)
}
