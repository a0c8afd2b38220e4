package models

import (
	"context"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/roadmap-ai/orchestrator/internal/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

// NewGemini creates a new Google Gemini ChatModel via eino-ext's gemini
// component, which wraps an official google.golang.org/genai client rather
// than talking to the REST API directly.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{APIKey: auth.Value}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}

	modelConfig := &einogemini.Config{
		Client: client,
		Model:  modelName,
	}

	if cfg.MaxTokens > 0 {
		maxTokens := int32(cfg.MaxTokens)
		modelConfig.MaxTokens = &maxTokens
	}

	if cfg.Options != nil {
		if temp, ok := cfg.Options["temperature"].(float64); ok {
			t := float32(temp)
			modelConfig.Temperature = &t
		}
	}

	return einogemini.NewChatModel(ctx, modelConfig)
}
