package llm

import (
	"context"
	"fmt"

	"ai-fitness-coach/internal/shared"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicModel     = "claude-sonnet-4-5"
	anthropicMaxTokens = 8192
)

// anthropicClient is a client for the Anthropic Messages API.
type anthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(apiKey, model string) ChatGenerator {
	if model == "" {
		model = anthropicModel
	}
	return &anthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Generate sends the prompts to the Claude model and returns the concatenated text blocks.
func (c *anthropicClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (ContentResponse, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return ContentResponse{}, fmt.Errorf("anthropic api error: %w", err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	var text string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return ContentResponse{}, fmt.Errorf("generated content is not text")
	}

	return ContentResponse{
		Content: text,
		Usage: shared.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			Model:            string(c.model),
		},
	}, nil
}
