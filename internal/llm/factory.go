package llm

import (
	"context"
	"fmt"

	"ai-fitness-coach/internal/config"
)

// NewChatGenerator builds the provider client selected by cfg.LLMProvider,
// wrapped in a response cache when cfg.LLMCachePath is set. The returned
// close function releases provider resources and flushes the cache.
func NewChatGenerator(ctx context.Context, cfg *config.Config) (ChatGenerator, func() error, error) {
	var (
		gen ChatGenerator
		err error
	)

	switch cfg.LLMProvider {
	case config.ProviderGroq:
		gen = NewGroqClient(cfg.GroqAPIKey, cfg.LLMModel)
	case config.ProviderGemini:
		gen, err = NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
	case config.ProviderAnthropic:
		gen = NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMModel)
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}

	closers := []func() error{}
	if c, ok := gen.(Closer); ok {
		closers = append(closers, c.Close)
	}

	if cfg.LLMCachePath != "" {
		cached, err := NewCachedGenerator(gen, cfg.LLMCachePath)
		if err != nil {
			return nil, nil, err
		}
		gen = cached
		closers = append([]func() error{cached.SaveCache}, closers...)
	}

	closeAll := func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	return gen, closeAll, nil
}
