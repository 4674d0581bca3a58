package llm

import (
	"context"
	"fmt"

	"ai-fitness-coach/internal/shared"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1/"
	groqModel   = "llama-3.3-70b-versatile"
)

// groqClient talks to Groq through its OpenAI-compatible endpoint.
type groqClient struct {
	client openai.Client
	model  string
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(apiKey, model string) ChatGenerator {
	if model == "" {
		model = groqModel
	}
	return &groqClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(groqBaseURL),
		),
		model: model,
	}
}

// Generate sends the prompts to the Groq model and returns the generated text.
func (c *groqClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (ContentResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return ContentResponse{}, fmt.Errorf("groq api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	return ContentResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: shared.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			Model:            c.model,
		},
	}, nil
}
