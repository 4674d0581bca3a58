package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	// Helper function to set environment variables for a test
	setEnv := func(key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	t.Run("DefaultsToGroq", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "")
		setEnv("GROQ_API_KEY", "groq_key")
		setEnv("DATABASE_PATH", "")
		setEnv("PIPELINE_CONFIG", "")
		setEnv("GENERATION_STORE", "")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.LLMProvider != ProviderGroq {
			t.Errorf("Expected LLMProvider to be '%s', got '%s'", ProviderGroq, cfg.LLMProvider)
		}
		if cfg.GroqAPIKey != "groq_key" {
			t.Errorf("Expected GroqAPIKey to be 'groq_key', got '%s'", cfg.GroqAPIKey)
		}
		if cfg.DatabasePath != "data/coach.db" {
			t.Errorf("Expected default DatabasePath, got '%s'", cfg.DatabasePath)
		}
		if cfg.GenerationStore != StoreSQLite {
			t.Errorf("Expected default GenerationStore to be '%s', got '%s'", StoreSQLite, cfg.GenerationStore)
		}
		if cfg.Pipeline.StaleAfter() != 15*time.Minute {
			t.Errorf("Expected default stale threshold of 15m, got %s", cfg.Pipeline.StaleAfter())
		}
	})

	t.Run("UnsupportedGenerationStore", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "groq")
		setEnv("GROQ_API_KEY", "groq_key")
		setEnv("GENERATION_STORE", "redis")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for GENERATION_STORE=redis, got nil")
		}
		setEnv("GENERATION_STORE", "")
	})

	t.Run("MissingGroqAPIKey", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "groq")
		os.Unsetenv("GROQ_API_KEY")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing GROQ_API_KEY, got nil")
		}
		expectedError := "GROQ_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("MissingGeminiAPIKey", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "gemini")
		setEnv("GROQ_API_KEY", "groq_key")
		os.Unsetenv("GEMINI_API_KEY")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing GEMINI_API_KEY, got nil")
		}
		expectedError := "GEMINI_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("MissingAnthropicAPIKey", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "anthropic")
		os.Unsetenv("ANTHROPIC_API_KEY")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing ANTHROPIC_API_KEY, got nil")
		}
		expectedError := "ANTHROPIC_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "ollama")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for unsupported provider, got nil")
		}
	})

	t.Run("TelegramIDs", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "groq")
		setEnv("GROQ_API_KEY", "groq_key")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "12, 34,,56")
		setEnv("ADMIN_TELEGRAM_ID", "34")
		setEnv("TELEGRAM_BOT_TOKEN", "")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(cfg.TelegramAllowedUserIDs) != 3 || cfg.TelegramAllowedUserIDs[2] != 56 {
			t.Errorf("Unexpected allowed IDs: %v", cfg.TelegramAllowedUserIDs)
		}
		if cfg.AdminTelegramID != 34 {
			t.Errorf("Expected AdminTelegramID 34, got %d", cfg.AdminTelegramID)
		}
		if err := cfg.RequireTelegram(); err == nil {
			t.Error("Expected RequireTelegram to fail without a bot token")
		}
	})

	t.Run("InvalidTelegramIDs", func(t *testing.T) {
		setEnv("LLM_PROVIDER", "groq")
		setEnv("GROQ_API_KEY", "groq_key")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "12,abc")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for a non-numeric user id, got nil")
		}
	})
}

func TestLoadPipeline(t *testing.T) {
	dir := t.TempDir()

	t.Run("OverlayKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(dir, "pipeline.yaml")
		content := `
stale_after_minutes: 30
allow_missing_meal_days: true
steps:
  workout_plan:
    delay_seconds: 5
    eta_seconds: 90
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write overlay: %v", err)
		}

		p, err := LoadPipeline(path)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.StaleAfter() != 30*time.Minute {
			t.Errorf("Expected stale threshold 30m, got %s", p.StaleAfter())
		}
		if p.ClaimLease() != 10*time.Minute {
			t.Errorf("Expected default claim lease 10m, got %s", p.ClaimLease())
		}
		if !p.AllowMissingMealDays {
			t.Error("Expected AllowMissingMealDays to be true")
		}
		if got := p.Steps["workout_plan"]; got.ETASeconds != 90 || got.DelaySeconds != 5 {
			t.Errorf("Unexpected workout_plan timing: %+v", got)
		}
		if got := p.Steps["meal_plan"]; got.ETASeconds != 20 {
			t.Errorf("Expected meal_plan timing to keep its default, got %+v", got)
		}
	})

	t.Run("UnknownStep", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("steps:\n  warmup:\n    delay_seconds: 1\n"), 0644); err != nil {
			t.Fatalf("Failed to write overlay: %v", err)
		}
		if _, err := LoadPipeline(path); err == nil {
			t.Fatal("Expected an error for an unknown step, got nil")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := LoadPipeline(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Fatal("Expected an error for a missing file, got nil")
		}
	})
}
