// Package stages adapts the language model into the four plan stages:
// workout, meal, ingredient extraction and shopping list. Each stage sends a
// typed request, validates the JSON it gets back and fails loudly on
// structurally incomplete answers.
package stages

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/shared"
)

// Stage names, also used as agent names in metrics.
const (
	StageWorkout     = "workout"
	StageMeal        = "meal"
	StageIngredients = "ingredients"
	StageShopping    = "shopping"
)

// ErrUpstreamGeneration is matched by every stage failure.
var ErrUpstreamGeneration = errors.New("upstream generation failed")

// UpstreamGenerationError carries the stage that failed and the raw cause.
type UpstreamGenerationError struct {
	Stage string
	Cause error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Cause)
}

func (e *UpstreamGenerationError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrUpstreamGeneration) hold for any stage failure.
func (e *UpstreamGenerationError) Is(target error) bool {
	return target == ErrUpstreamGeneration
}

func upstreamErr(stage string, format string, args ...any) error {
	return &UpstreamGenerationError{Stage: stage, Cause: fmt.Errorf(format, args...)}
}

//go:embed prompts/*.md
var promptFS embed.FS

var prompts = template.Must(
	template.New("prompts").Funcs(template.FuncMap{"join": strings.Join}).ParseFS(promptFS, "prompts/*.md"),
)

func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// call renders the system prompt, runs the completion and decodes the JSON
// answer into out. Every failure is returned as *UpstreamGenerationError.
func call(
	ctx context.Context,
	completer llm.Completer,
	stage string,
	promptName string,
	promptData any,
	payload any,
	shape string,
	out any,
) (shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: stage}

	system, err := renderPrompt(promptName, promptData)
	if err != nil {
		return meta, &UpstreamGenerationError{Stage: stage, Cause: err}
	}

	completion, err := completer.Complete(ctx, llm.CompletionRequest{
		Agent:         stage,
		SystemPrompt:  system,
		Payload:       payload,
		ResponseShape: shape,
	})
	meta.Usage = completion.Usage
	meta.Cached = completion.Cached
	meta.Latency = time.Since(start)
	if err != nil {
		return meta, &UpstreamGenerationError{Stage: stage, Cause: err}
	}

	if err := json.Unmarshal(completion.JSON, out); err != nil {
		return meta, upstreamErr(stage, "failed to parse response: %w", err)
	}
	return meta, nil
}
