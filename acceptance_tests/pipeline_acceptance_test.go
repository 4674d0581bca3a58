package acceptance_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/stages/stagetest"
)

func testInput() plan.Input {
	return plan.Input{
		Age: 30, Sex: "male", Height: 180, Weight: 80,
		ActivityLevel: "moderate", FitnessGoal: "muscle_gain", WorkoutDaysPerWeek: 4,
		WeeklyBudget: 80, PreferredStore: "Corner Shop",
	}
}

func pipelineConfig(delay int) *config.Config {
	cfg := &config.Config{Pipeline: config.DefaultPipeline()}
	for name, timing := range cfg.Pipeline.Steps {
		timing.DelaySeconds = delay
		cfg.Pipeline.Steps[name] = timing
	}
	return cfg
}

type stack struct {
	coach     *generation.Orchestrator
	scheduler *generation.TimerScheduler
	persister *planner.Persister
	metrics   *metrics.Store
}

func newStack(t *testing.T, db *database.DB, cfg *config.Config, gen llm.ChatGenerator) *stack {
	t.Helper()
	store, err := app.OpenStore(config.StoreSQLite, cfg, db.SQL)
	require.NoError(t, err)

	s := &stack{
		scheduler: generation.NewTimerScheduler(2, time.Minute),
		persister: planner.NewPersister(db.SQL),
		metrics:   metrics.NewStore(db.SQL),
	}
	observer := generation.MultiObserver{
		metrics.NewCollector(prometheus.NewRegistry()),
		metrics.NewRecorder(s.metrics),
	}
	s.coach = app.NewCoach(cfg, llm.NewStructuredClient(gen), store, s.persister, s.scheduler, observer)
	t.Cleanup(s.scheduler.Stop)
	return s
}

func openDB(t *testing.T, dir string) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(dir, "coach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func waitForOutcome(t *testing.T, coach *generation.Orchestrator, userID string, want generation.Outcome) *generation.Status {
	t.Helper()
	var last *generation.Status
	require.Eventually(t, func() bool {
		st, err := coach.GetStatus(context.Background(), userID)
		if err != nil || st == nil {
			return false
		}
		last = st
		return st.Outcome == want
	}, 10*time.Second, 10*time.Millisecond)
	return last
}

func TestPipeline_GeneratesAndStoresPlan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := openDB(t, dir)

	chat := stagetest.NewChatGenerator(4)
	cached, err := llm.NewCachedGenerator(chat, filepath.Join(dir, "cache", "llm.json"))
	require.NoError(t, err)

	s := newStack(t, db, pipelineConfig(0), cached)

	started, err := s.coach.Start(ctx, "acceptance:1", testInput())
	require.NoError(t, err)
	assert.True(t, started.IsGenerating)

	done := waitForOutcome(t, s.coach, "acceptance:1", generation.OutcomeCompleted)
	assert.Equal(t, generation.StepComplete, done.CurrentStep)
	assert.False(t, done.IsGenerating)
	assert.Equal(t, 4, chat.CallCount())

	result, err := s.coach.GetResult(ctx, "acceptance:1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsComplete())
	require.NotEmpty(t, result.PlanID)
	assert.Equal(t, "Corner Shop", result.ShoppingList.Store)

	active, err := s.persister.Plans().GetActive(ctx, "acceptance:1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, result.PlanID, active.ID)
	assert.Equal(t, started.RunID, active.RunID)

	goal, err := s.persister.Goals().GetGoal(ctx, "acceptance:1")
	require.NoError(t, err)
	require.NotNil(t, goal)
	assert.Equal(t, result.NutritionData.Calories, goal.Calories)

	// Same input for another user is answered from the cache.
	_, err = s.coach.Start(ctx, "acceptance:2", testInput())
	require.NoError(t, err)
	waitForOutcome(t, s.coach, "acceptance:2", generation.OutcomeCompleted)
	assert.Equal(t, 4, chat.CallCount())

	summary, err := s.metrics.GetAgentSummary(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, summary)
	executions, cacheHits := 0, 0
	for _, a := range summary {
		executions += a.Executions
		cacheHits += a.CacheHits
	}
	assert.Equal(t, 8, executions)
	assert.Equal(t, 4, cacheHits)

	require.NoError(t, cached.SaveCache())
	_, err = os.Stat(filepath.Join(dir, "cache", "llm.json"))
	assert.NoError(t, err)
}

func TestPipeline_ResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := openDB(t, dir)
	chat := stagetest.NewChatGenerator(4)

	// The first process never gets to run a stage.
	first := newStack(t, db, pipelineConfig(3600), chat)
	started, err := first.coach.Start(ctx, "acceptance:1", testInput())
	require.NoError(t, err)
	first.scheduler.Stop()

	second := newStack(t, db, pipelineConfig(0), chat)
	resumed, err := second.coach.ResumeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	done := waitForOutcome(t, second.coach, "acceptance:1", generation.OutcomeCompleted)
	assert.Equal(t, started.RunID, done.RunID)
}

func TestPipeline_CancelThenRestart(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	chat := stagetest.NewChatGenerator(4)
	s := newStack(t, db, pipelineConfig(3600), chat)

	first, err := s.coach.Start(ctx, "acceptance:1", testInput())
	require.NoError(t, err)
	assert.True(t, s.scheduler.Pending("acceptance:1"))

	assert.True(t, s.coach.Cancel(ctx, "acceptance:1"))
	assert.False(t, s.scheduler.Pending("acceptance:1"))

	st, err := s.coach.GetStatus(ctx, "acceptance:1")
	require.NoError(t, err)
	assert.Nil(t, st)

	second, err := s.coach.Start(ctx, "acceptance:1", testInput())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, generation.StepInitialize, second.CurrentStep)
	assert.Equal(t, 0, chat.CallCount())
}
