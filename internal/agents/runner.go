package agents

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// runOnce sends a single user turn to a role's chat model and returns the
// final assistant text. There are no tools and no multi-turn state — each
// node runner and content sub-agent call is independent, matching the
// request/response shape node_execution wraps them in.
//
// This mirrors the buffered single-shot path the teacher uses for
// summarization: a fresh adk.Runner with streaming disabled, consumed to
// completion, skipping intermediate tool-call frames.
func runOnce(ctx context.Context, chatModel model.ToolCallingChatModel, instruction, prompt string) (string, error) {
	agent, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "roadmap-agent",
		Description: "single-turn workflow node agent",
		Instruction: instruction,
		Model:       chatModel,
	})
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent:           agent,
		EnableStreaming: false,
	})

	messages := []*schema.Message{{Role: schema.User, Content: prompt}}
	iter := runner.Run(ctx, messages)

	return consumeBuffered(iter)
}

func consumeBuffered(iter *adk.AsyncIterator[*adk.AgentEvent]) (string, error) {
	var content string

	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return "", event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		mv := event.Output.MessageOutput
		if mv.Role == schema.Tool {
			if mv.IsStreaming && mv.MessageStream != nil {
				mv.MessageStream.Close()
			}
			continue
		}

		if mv.IsStreaming && mv.MessageStream != nil {
			text, err := drainStream(mv.MessageStream)
			if err != nil {
				return "", err
			}
			if text != "" {
				content = text
			}
			continue
		}

		if mv.Message != nil {
			if len(mv.Message.ToolCalls) > 0 && mv.Message.Content == "" {
				continue
			}
			if mv.Message.Content != "" {
				content = mv.Message.Content
			}
		}
	}

	return content, nil
}

func drainStream(stream *schema.StreamReader[*schema.Message]) (string, error) {
	var content string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if chunk != nil && chunk.Content != "" {
			content += chunk.Content
		}
	}
	return content, nil
}
