package llm

import (
	"ai-fitness-coach/internal/shared"
	"context"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
	Cached  bool
}

// ChatGenerator produces text from a system instruction and a user message.
// Provider clients implement it.
type ChatGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
