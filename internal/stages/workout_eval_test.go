package stages_test

import (
	"context"
	"testing"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/stages"
)

// TestWorkout_LiveEval performs a real LLM call to check the workout stage
// against a configured provider.
// Run with: go test -v ./internal/stages -run TestWorkout_LiveEval
func TestWorkout_LiveEval(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping live eval in short mode")
	}

	// 1. Setup real environment
	ctx := context.Background()
	cfg, err := config.NewFromEnv()
	if err != nil {
		t.Skip("Skipping: No API keys found in environment")
	}

	gen, closeFn, err := llm.NewChatGenerator(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create provider client: %v", err)
	}
	defer closeFn()

	input := testInput()
	input.Equipment = []string{"dumbbells", "pull-up bar"}
	targets, err := nutrition.Calculate(input.Profile())
	if err != nil {
		t.Fatalf("Failed to calculate targets: %v", err)
	}

	// 2. Execute
	res, err := stages.NewWorkoutGenerator(llm.NewStructuredClient(gen)).Generate(ctx, stages.WorkoutRequest{
		Input:     input,
		Nutrition: targets,
	})
	if err != nil {
		t.Fatalf("Workout stage failed: %v", err)
	}

	// 3. Quality Assertions (The "Evals")
	for _, d := range res.Plan.Days {
		if d.RestDay {
			continue
		}
		for _, ex := range d.Exercises {
			if ex.Reps == "" {
				t.Errorf("%s: exercise %q has no reps", d.Day, ex.Name)
			}
		}
	}

	t.Logf("Workout eval used %d tokens in %s", res.Meta.Usage.TotalTokens, res.Meta.Latency)
}
