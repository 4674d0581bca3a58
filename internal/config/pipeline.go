package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StepTiming tunes one pipeline step: how long to wait before advancing past
// it and how long the step is expected to take.
type StepTiming struct {
	DelaySeconds int `yaml:"delay_seconds"`
	ETASeconds   int `yaml:"eta_seconds"`
}

// Pipeline holds the tunables of the plan-generation pipeline.
type Pipeline struct {
	StaleAfterMinutes     int                   `yaml:"stale_after_minutes"`
	ClaimLeaseMinutes     int                   `yaml:"claim_lease_minutes"`
	MaxConcurrentAdvances int                   `yaml:"max_concurrent_advances"`
	AllowMissingMealDays  bool                  `yaml:"allow_missing_meal_days"`
	Steps                 map[string]StepTiming `yaml:"steps"`
}

// DefaultPipeline returns the tunables used when no overlay file is given.
// Step keys match the generation step names.
func DefaultPipeline() Pipeline {
	return Pipeline{
		StaleAfterMinutes:     15,
		ClaimLeaseMinutes:     10,
		MaxConcurrentAdvances: 4,
		Steps: map[string]StepTiming{
			"initialize":            {DelaySeconds: 0, ETASeconds: 1},
			"nutrition_calculation": {DelaySeconds: 1, ETASeconds: 30},
			"workout_plan":          {DelaySeconds: 2, ETASeconds: 45},
			"meal_plan":             {DelaySeconds: 2, ETASeconds: 20},
			"extract_ingredients":   {DelaySeconds: 2, ETASeconds: 25},
			"shopping_list":         {DelaySeconds: 1, ETASeconds: 5},
		},
	}
}

// LoadPipeline reads a YAML overlay on top of DefaultPipeline. Fields left out
// of the file keep their defaults.
func LoadPipeline(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}

	var overlay Pipeline
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Pipeline{}, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}

	p := DefaultPipeline()
	if overlay.StaleAfterMinutes > 0 {
		p.StaleAfterMinutes = overlay.StaleAfterMinutes
	}
	if overlay.ClaimLeaseMinutes > 0 {
		p.ClaimLeaseMinutes = overlay.ClaimLeaseMinutes
	}
	if overlay.MaxConcurrentAdvances > 0 {
		p.MaxConcurrentAdvances = overlay.MaxConcurrentAdvances
	}
	p.AllowMissingMealDays = overlay.AllowMissingMealDays
	for name, timing := range overlay.Steps {
		if _, known := p.Steps[name]; !known {
			return Pipeline{}, fmt.Errorf("unknown step %q in pipeline config %s", name, path)
		}
		p.Steps[name] = timing
	}
	return p, nil
}

// StaleAfter is the inactivity window after which a generating run is flagged stale.
func (p Pipeline) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterMinutes) * time.Minute
}

// ClaimLease is how long a stage claim is honoured before another caller may take it over.
func (p Pipeline) ClaimLease() time.Duration {
	return time.Duration(p.ClaimLeaseMinutes) * time.Minute
}
