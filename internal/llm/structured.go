package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"ai-fitness-coach/internal/shared"
)

// ErrInvalidJSON is returned when the model answer cannot be read as a JSON document.
var ErrInvalidJSON = errors.New("model response is not valid JSON")

// CompletionRequest describes one structured call: the system instruction,
// a JSON-serializable payload and a description of the expected answer.
type CompletionRequest struct {
	Agent         string
	SystemPrompt  string
	Payload       any
	ResponseShape string
}

// Completion is the raw JSON answer of a structured call.
type Completion struct {
	JSON    json.RawMessage
	Usage   shared.TokenUsage
	Latency time.Duration
	Cached  bool
}

// Completer turns a structured request into a JSON document.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// StructuredClient implements Completer on top of any ChatGenerator.
type StructuredClient struct {
	gen ChatGenerator
}

// NewStructuredClient creates a new StructuredClient.
func NewStructuredClient(gen ChatGenerator) *StructuredClient {
	return &StructuredClient{gen: gen}
}

// Complete serializes the payload, asks the model for JSON and returns the
// first JSON document found in the answer. An answer that is not valid JSON
// is sent back once with a request to fix it.
func (c *StructuredClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	start := time.Now()

	payload, err := json.MarshalIndent(req.Payload, "", "  ")
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal %s payload: %w", req.Agent, err)
	}

	userPrompt := fmt.Sprintf("Input:\n%s\n\nRespond with JSON only, matching this shape:\n%s", payload, req.ResponseShape)

	resp, err := c.gen.Generate(ctx, req.SystemPrompt, userPrompt)
	if err != nil {
		return Completion{}, err
	}
	usage := resp.Usage

	raw := ExtractJSON(resp.Content)
	if !json.Valid([]byte(raw)) {
		log.Printf("LLM: %s answer is not valid JSON, asking for a repair", req.Agent)
		repairPrompt := fmt.Sprintf("%s\n\nYour previous answer was not valid JSON:\n%s\n\nReply again with the corrected JSON document only.",
			userPrompt, truncate(resp.Content, 2000))

		resp, err = c.gen.Generate(ctx, req.SystemPrompt, repairPrompt)
		if err != nil {
			return Completion{Usage: usage}, err
		}
		usage = usage.Add(resp.Usage)

		raw = ExtractJSON(resp.Content)
		if !json.Valid([]byte(raw)) {
			return Completion{Usage: usage}, fmt.Errorf("%w: %s", ErrInvalidJSON, truncate(resp.Content, 200))
		}
	}

	return Completion{
		JSON:    json.RawMessage(raw),
		Usage:   usage,
		Latency: time.Since(start),
		Cached:  resp.Cached,
	}, nil
}

// ExtractJSON strips markdown code fences and any prose around the outermost
// JSON object or array.
func ExtractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	open := strings.IndexAny(s, "{[")
	if open < 0 {
		return s
	}
	closing := byte('}')
	if s[open] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(s, closing)
	if end < open {
		return s
	}
	return s[open : end+1]
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
