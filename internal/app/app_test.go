package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/shopping"
	"ai-fitness-coach/internal/stages/stagetest"
)

// scriptedCoach walks through a fixed list of statuses, one per GetStatus call.
type scriptedCoach struct {
	mu       sync.Mutex
	script   []generation.Status
	result   *plan.Accumulated
	startErr error
}

func (c *scriptedCoach) Start(_ context.Context, _ string, _ plan.Input) (generation.Status, error) {
	if c.startErr != nil {
		return generation.Status{}, c.startErr
	}
	return c.script[0], nil
}

func (c *scriptedCoach) GetStatus(_ context.Context, _ string) (*generation.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) == 0 {
		return nil, nil
	}
	st := c.script[0]
	if len(c.script) > 1 {
		c.script = c.script[1:]
	}
	return &st, nil
}

func (c *scriptedCoach) Cancel(_ context.Context, _ string) bool {
	return len(c.script) > 0
}

func (c *scriptedCoach) GetResult(_ context.Context, _ string) (*plan.Accumulated, error) {
	return c.result, nil
}

func running(step generation.Step) generation.Status {
	return generation.Status{
		RunID: "run-1", IsGenerating: true, Outcome: generation.OutcomeRunning,
		CurrentStep: step, TotalSteps: generation.TotalSteps, StepMessage: step.Message(),
	}
}

func finishedPlan() *plan.Accumulated {
	workout := stagetest.WorkoutPlan(3)
	meals := stagetest.MealPlan(false)
	list := shopping.Normalize(stagetest.ShoppingList())
	return &plan.Accumulated{
		NutritionData: &nutrition.Targets{Calories: 2400, Protein: 150, Carbs: 280, Fat: 70, WaterMl: 2800},
		WorkoutPlan:   &workout,
		MealPlan:      &meals,
		Ingredients:   stagetest.Ingredients(),
		ShoppingList:  &list,
	}
}

func newTestApp(coach Coach) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	a := NewApp(coach, nil, nil, out)
	a.PollInterval = time.Millisecond
	return a, out
}

func TestApp_GenerateFollowsRunAndPrintsPlan(t *testing.T) {
	done := running(generation.StepComplete)
	done.IsGenerating = false
	done.Outcome = generation.OutcomeCompleted

	coach := &scriptedCoach{
		script: []generation.Status{
			running(generation.StepInitialize),
			running(generation.StepWorkoutPlan),
			running(generation.StepShoppingList),
			done,
		},
		result: finishedPlan(),
	}
	a, out := newTestApp(coach)

	require.NoError(t, a.Generate(context.Background(), "cli:me", plan.Input{}))

	got := out.String()
	assert.Contains(t, got, "run run-1")
	assert.Contains(t, got, "[2/6] "+generation.StepWorkoutPlan.Message())
	assert.Contains(t, got, "Plan ready")
	assert.Contains(t, got, "2400 kcal")
	assert.Contains(t, got, "2,800 ml")
	assert.Contains(t, got, "Squat 4x6-8")
	assert.Contains(t, got, "Chicken rice bowl")
	assert.Contains(t, got, "Shopping list")
}

func TestApp_GenerateReportsFailure(t *testing.T) {
	failed := running(generation.StepMealPlan)
	failed.IsGenerating = false
	failed.Outcome = generation.OutcomeFailed
	failed.ErrorMessage = "meal stage: invalid JSON"

	coach := &scriptedCoach{script: []generation.Status{running(generation.StepInitialize), failed}}
	a, out := newTestApp(coach)

	err := a.Generate(context.Background(), "cli:me", plan.Input{})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorContains(t, err, "invalid JSON")
	assert.Contains(t, out.String(), "Failed:")
}

func TestApp_GenerateStopsWhenRunIsReplaced(t *testing.T) {
	replaced := running(generation.StepInitialize)
	replaced.RunID = "run-2"
	coach := &scriptedCoach{script: []generation.Status{running(generation.StepInitialize), replaced}}
	a, _ := newTestApp(coach)

	err := a.Generate(context.Background(), "cli:me", plan.Input{})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorContains(t, err, "run-1 was removed")
}

func TestApp_GenerateStartError(t *testing.T) {
	coach := &scriptedCoach{startErr: &plan.InputError{Fields: []string{"age"}}}
	a, _ := newTestApp(coach)

	err := a.Generate(context.Background(), "cli:me", plan.Input{})
	assert.True(t, errors.Is(err, plan.ErrInvalidInput))
}

func TestApp_StatusResultCancel(t *testing.T) {
	ctx := context.Background()

	a, out := newTestApp(&scriptedCoach{})
	require.NoError(t, a.Status(ctx, "cli:me"))
	require.NoError(t, a.Result(ctx, "cli:me"))
	require.NoError(t, a.Cancel(ctx, "cli:me"))
	assert.Contains(t, out.String(), "No generation for cli:me.")
	assert.Contains(t, out.String(), "No finished plan for cli:me.")
	assert.Contains(t, out.String(), "Nothing to cancel.")

	stale := running(generation.StepMealPlan)
	stale.Stale = true
	a, out = newTestApp(&scriptedCoach{script: []generation.Status{stale}})
	require.NoError(t, a.Status(ctx, "cli:me"))
	require.NoError(t, a.Cancel(ctx, "cli:me"))
	assert.Contains(t, out.String(), "stale")
	assert.Contains(t, out.String(), "Generation cancelled.")
}

func TestApp_HistoryAndMetricsCleanup(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	persister := planner.NewPersister(db.SQL)
	acc := finishedPlan()
	acc.InputSnapshot = plan.Input{Age: 30}
	in, err := acc.PersistInputs()
	require.NoError(t, err)
	planID, err := persister.Persist(ctx, "cli:me", "run-1", in)
	require.NoError(t, err)

	store := metrics.NewStore(db.SQL)
	require.NoError(t, store.Record(ctx, metrics.MapUsage(shared.AgentMeta{
		AgentName: "workout_planner",
		Usage:     shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
	})))

	out := &bytes.Buffer{}
	a := NewApp(&scriptedCoach{}, persister.Plans(), store, out)

	require.NoError(t, a.History(ctx, "cli:me", 5))
	assert.Contains(t, out.String(), planID)
	assert.Contains(t, out.String(), "active")

	require.NoError(t, a.CleanupMetrics(ctx, 0))
	assert.Contains(t, out.String(), "removed")

	bare, _ := newTestApp(&scriptedCoach{})
	assert.Error(t, bare.History(ctx, "cli:me", 5))
	assert.Error(t, bare.CleanupMetrics(ctx, 30))
}
