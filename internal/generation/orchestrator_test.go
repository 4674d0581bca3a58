package generation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/shopping"
	"ai-fitness-coach/internal/stages"
	"ai-fitness-coach/internal/stages/stagetest"
)

// stubStages answers every stage with fixtures. Errors queued per stage are
// returned one per call; a gate blocks a stage until it is closed.
type stubStages struct {
	mu         sync.Mutex
	calls      map[string]int
	errs       map[string][]error
	gates      map[string]chan struct{}
	entered    chan string
	structured bool
}

func newStubStages() *stubStages {
	return &stubStages{
		calls:   map[string]int{},
		errs:    map[string][]error{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 16),
	}
}

func (s *stubStages) failOnce(stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[stage] = append(s.errs[stage], err)
}

func (s *stubStages) gate(stage string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[stage] = ch
	return ch
}

func (s *stubStages) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

func (s *stubStages) enter(ctx context.Context, stage string) (shared.AgentMeta, error) {
	s.mu.Lock()
	s.calls[stage]++
	var err error
	if q := s.errs[stage]; len(q) > 0 {
		err, s.errs[stage] = q[0], q[1:]
	}
	gate := s.gates[stage]
	s.mu.Unlock()

	s.entered <- stage
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return shared.AgentMeta{}, ctx.Err()
		}
	}
	return shared.AgentMeta{AgentName: stage, Usage: shared.TokenUsage{TotalTokens: 10}}, err
}

type workoutStub struct{ *stubStages }

func (s workoutStub) Generate(ctx context.Context, req stages.WorkoutRequest) (stages.WorkoutResult, error) {
	meta, err := s.enter(ctx, stages.StageWorkout)
	if err != nil {
		return stages.WorkoutResult{Meta: meta}, err
	}
	return stages.WorkoutResult{Plan: stagetest.WorkoutPlan(req.Input.WorkoutDaysPerWeek), Meta: meta}, nil
}

type mealStub struct{ *stubStages }

func (s mealStub) Generate(ctx context.Context, _ stages.MealRequest) (stages.MealResult, error) {
	meta, err := s.enter(ctx, stages.StageMeal)
	if err != nil {
		return stages.MealResult{Meta: meta}, err
	}
	return stages.MealResult{Plan: stagetest.MealPlan(s.structured), Meta: meta}, nil
}

type ingredientStub struct{ *stubStages }

func (s ingredientStub) Generate(ctx context.Context, _ stages.ExtractionRequest) (stages.IngredientResult, error) {
	meta, err := s.enter(ctx, stages.StageIngredients)
	if err != nil {
		return stages.IngredientResult{Meta: meta}, err
	}
	return stages.IngredientResult{Ingredients: stagetest.Ingredients(), Meta: meta}, nil
}

type shoppingStub struct{ *stubStages }

func (s shoppingStub) Generate(ctx context.Context, req stages.ShoppingRequest) (stages.ShoppingResult, error) {
	meta, err := s.enter(ctx, stages.StageShopping)
	if err != nil {
		return stages.ShoppingResult{Meta: meta}, err
	}
	raw := stagetest.ShoppingList()
	raw.Budget = req.Budget
	raw.Store = req.Store
	return stages.ShoppingResult{List: shopping.Normalize(raw), Meta: meta}, nil
}

type stubPersister struct {
	mu    sync.Mutex
	runs  []string
	errs  []error
	plans map[string]string
}

func (p *stubPersister) Persist(_ context.Context, _, runID string, in plan.PersistInputs) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, runID)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return "", err
	}
	if p.plans == nil {
		p.plans = map[string]string{}
	}
	if id, ok := p.plans[runID]; ok {
		return id, nil
	}
	p.plans[runID] = "plan-" + runID
	return p.plans[runID], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []scheduledAdvance
	cancelled []string
}

type scheduledAdvance struct {
	userID string
	from   generation.Step
	delay  time.Duration
}

func (r *recordingScheduler) Schedule(userID string, from generation.Step, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, scheduledAdvance{userID, from, delay})
}

func (r *recordingScheduler) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, userID)
}

type recordingObserver struct {
	generation.NopObserver
	mu        sync.Mutex
	agents    []string
	conflicts int
}

func (r *recordingObserver) ObserveConflict(generation.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *recordingObserver) RecordAgent(meta shared.AgentMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, meta.AgentName)
}

// failingStore lets tests break individual Store writes.
type failingStore struct {
	generation.Store
	deleteErr error
	setErr    error
}

func (f *failingStore) DeleteStatus(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteStatus(ctx, userID)
}

func (f *failingStore) SetStatus(ctx context.Context, st generation.Status) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.SetStatus(ctx, st)
}

type harness struct {
	orch      *generation.Orchestrator
	store     generation.Store
	stages    *stubStages
	persister *stubPersister
	clock     *fakeClock
	sched     *recordingScheduler
	observer  *recordingObserver
}

func newHarness(t *testing.T, store generation.Store) *harness {
	t.Helper()
	if store == nil {
		store = generation.NewMemoryStore()
	}
	h := &harness{
		store:     store,
		stages:    newStubStages(),
		persister: &stubPersister{},
		clock:     &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		sched:     &recordingScheduler{},
		observer:  &recordingObserver{},
	}
	h.orch = generation.NewOrchestrator(generation.Deps{
		Store:       store,
		Workout:     workoutStub{h.stages},
		Meal:        mealStub{h.stages},
		Ingredients: ingredientStub{h.stages},
		Shopping:    shoppingStub{h.stages},
		Persister:   h.persister,
		Scheduler:   h.sched,
		Observer:    h.observer,
	}, generation.Options{Clock: h.clock.Now})
	return h
}

func happyInput() plan.Input {
	return plan.Input{
		Age:                30,
		Sex:                "male",
		Height:             180,
		Weight:             80,
		ActivityLevel:      "moderate",
		FitnessGoal:        "muscle_gain",
		WorkoutDaysPerWeek: 4,
	}
}

func TestOrchestrator_HappyPath(t *testing.T) {
	for _, structured := range []bool{false, true} {
		h := newHarness(t, nil)
		h.stages.structured = structured
		ctx := context.Background()

		st, err := h.orch.Start(ctx, "u1", happyInput())
		require.NoError(t, err)
		assert.Equal(t, generation.StepInitialize, st.CurrentStep)
		assert.True(t, st.IsGenerating)
		assert.Equal(t, generation.TotalSteps, st.TotalSteps)
		assert.Equal(t, 126, st.EstimatedSecondsRemaining)
		assert.NotEmpty(t, st.RunID)

		want := []generation.Step{
			generation.StepNutritionCalculation,
			generation.StepWorkoutPlan,
			generation.StepMealPlan,
			generation.StepExtractIngredients,
			generation.StepShoppingList,
			generation.StepComplete,
		}
		for _, step := range want {
			st, err = h.orch.Advance(ctx, "u1")
			require.NoError(t, err)
			require.Equal(t, step, st.CurrentStep)
			assert.Equal(t, step.Message(), st.StepMessage)
			assert.Empty(t, st.ClaimToken)
		}
		assert.False(t, st.IsGenerating)
		assert.Equal(t, generation.OutcomeCompleted, st.Outcome)
		assert.Zero(t, st.EstimatedSecondsRemaining)

		result, err := h.orch.GetResult(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, result)
		require.NotNil(t, result.NutritionData)
		assert.Equal(t, 3059, result.NutritionData.Calories)
		require.NotNil(t, result.WorkoutPlan)
		assert.Equal(t, 4, result.WorkoutPlan.TrainingDays())
		require.NotNil(t, result.MealPlan)
		assert.Len(t, result.Ingredients, 6)
		require.NotNil(t, result.ShoppingList)
		assert.Equal(t, "plan-"+st.RunID, result.PlanID)
		assert.True(t, result.IsComplete())

		if structured {
			assert.Zero(t, h.stages.count(stages.StageIngredients))
		} else {
			assert.Equal(t, 1, h.stages.count(stages.StageIngredients))
		}

		again, err := h.orch.Advance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, st.Version, again.Version)
	}
}

func TestOrchestrator_StartIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)

	other := happyInput()
	other.Age = 45
	second, err := h.orch.Start(ctx, "u1", other)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	in, err := h.store.GetInputSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, in.Age)
	assert.Len(t, h.sched.scheduled, 1)
}

func TestOrchestrator_StartRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, nil)

	in := happyInput()
	in.Age = 5
	in.FitnessGoal = "bulk"
	_, err := h.orch.Start(context.Background(), "u1", in)
	require.ErrorIs(t, err, plan.ErrInvalidInput)

	var inputErr *plan.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, []string{"age", "fitnessGoal"}, inputErr.Fields)

	st, err := h.orch.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = h.orch.Start(context.Background(), "", happyInput())
	require.ErrorIs(t, err, plan.ErrInvalidInput)
}

func TestOrchestrator_StageFailureThenRetry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = h.orch.Advance(ctx, "u1")
		require.NoError(t, err)
	}

	h.stages.failOnce(stages.StageMeal, &stages.UpstreamGenerationError{Stage: stages.StageMeal, Cause: errors.New("upstream timeout")})

	st, err := h.orch.Advance(ctx, "u1")
	require.ErrorIs(t, err, stages.ErrUpstreamGeneration)
	assert.False(t, st.IsGenerating)
	assert.Equal(t, generation.OutcomeFailed, st.Outcome)
	assert.Equal(t, generation.StepWorkoutPlan, st.CurrentStep)
	assert.Contains(t, st.ErrorMessage, "upstream timeout")

	stored, err := h.orch.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, generation.StepWorkoutPlan, stored.CurrentStep)
	assert.NotEmpty(t, stored.ErrorMessage)

	data, err := h.store.GetAccumulatedData(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, data.NutritionData)
	assert.NotNil(t, data.WorkoutPlan)
	assert.Nil(t, data.MealPlan)

	result, err := h.orch.GetResult(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, result)

	st, err = h.orch.Advance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, generation.StepMealPlan, st.CurrentStep)
	assert.True(t, st.IsGenerating)
	assert.Empty(t, st.ErrorMessage)
	assert.Equal(t, 1, h.stages.count(stages.StageWorkout))
	assert.Equal(t, 2, h.stages.count(stages.StageMeal))
}

func TestOrchestrator_StepsNeverGoBackwards(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.stages.failOnce(stages.StageWorkout, errors.New("flaky"))
	h.stages.failOnce(stages.StageShopping, errors.New("flaky"))
	h.stages.failOnce(stages.StageShopping, errors.New("flaky again"))
	h.persister.errs = []error{errors.New("db locked")}

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)

	var seen []generation.Step
	for i := 0; i < 20; i++ {
		st, _ := h.orch.Advance(ctx, "u1")
		seen = append(seen, st.CurrentStep)
		if st.CurrentStep == generation.StepComplete {
			break
		}
	}
	require.Equal(t, generation.StepComplete, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "steps went backwards: %v", seen)
	}
	assert.Len(t, seen, 10)
}

func TestOrchestrator_ConcurrentAdvanceRunsStageOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	_, err = h.orch.Advance(ctx, "u1")
	require.NoError(t, err)

	gate := h.stages.gate(stages.StageWorkout)

	results := make(chan generation.Status, 2)
	for i := 0; i < 2; i++ {
		go func() {
			st, err := h.orch.Advance(ctx, "u1")
			assert.NoError(t, err)
			results <- st
		}()
	}

	loser := <-results
	assert.Equal(t, generation.StepNutritionCalculation, loser.CurrentStep)
	close(gate)
	winner := <-results
	assert.Equal(t, generation.StepWorkoutPlan, winner.CurrentStep)

	assert.Equal(t, 1, h.stages.count(stages.StageWorkout))
	assert.GreaterOrEqual(t, h.observer.conflicts, 1)
}

func TestOrchestrator_AbandonedClaimIsTakenOver(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	st, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)

	crashed := st
	crashed.ClaimToken = "crashed-worker"
	crashed.ClaimedAt = h.clock.Now()
	_, ok, err := h.store.CompareAndSwap(ctx, "u1", st.Version, crashed, nil)
	require.NoError(t, err)
	require.True(t, ok)

	held, err := h.orch.Advance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, generation.StepInitialize, held.CurrentStep)
	assert.Equal(t, "crashed-worker", held.ClaimToken)

	h.clock.Add(11 * time.Minute)
	next, err := h.orch.Advance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, generation.StepNutritionCalculation, next.CurrentStep)
}

func TestOrchestrator_CancelAlwaysSucceeds(t *testing.T) {
	t.Run("DeleteFails", func(t *testing.T) {
		store := &failingStore{Store: generation.NewMemoryStore(), deleteErr: errors.New("disk full")}
		h := newHarness(t, store)
		ctx := context.Background()

		_, err := h.orch.Start(ctx, "u1", happyInput())
		require.NoError(t, err)

		assert.True(t, h.orch.Cancel(ctx, "u1"))

		st, err := h.orch.GetStatus(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.False(t, st.IsGenerating)
		assert.Equal(t, generation.OutcomeCancelled, st.Outcome)
		assert.NotEmpty(t, st.ErrorMessage)

		_, err = h.orch.Advance(ctx, "u1")
		require.ErrorIs(t, err, generation.ErrNoActiveGeneration)

		restarted, err := h.orch.Start(ctx, "u1", happyInput())
		require.NoError(t, err)
		assert.True(t, restarted.IsGenerating)
	})

	t.Run("EveryWriteFails", func(t *testing.T) {
		store := &failingStore{Store: generation.NewMemoryStore(), deleteErr: errors.New("disk full"), setErr: errors.New("disk full")}
		h := newHarness(t, store)
		ctx := context.Background()

		_, err := h.orch.Start(ctx, "u1", happyInput())
		require.NoError(t, err)
		assert.True(t, h.orch.Cancel(ctx, "u1"))
	})

	t.Run("Deletes", func(t *testing.T) {
		h := newHarness(t, nil)
		ctx := context.Background()

		_, err := h.orch.Start(ctx, "u1", happyInput())
		require.NoError(t, err)
		assert.True(t, h.orch.Cancel(ctx, "u1"))
		assert.Equal(t, []string{"u1"}, h.sched.cancelled)

		st, err := h.orch.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, st)
	})

	t.Run("NothingToCancel", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.False(t, h.orch.Cancel(context.Background(), "nobody"))
	})
}

func TestOrchestrator_CancelDiscardsInFlightStage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	_, err = h.orch.Advance(ctx, "u1")
	require.NoError(t, err)

	gate := h.stages.gate(stages.StageWorkout)
	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Advance(ctx, "u1")
		done <- err
	}()
	for stage := range h.stages.entered {
		if stage == stages.StageWorkout {
			break
		}
	}

	require.True(t, h.orch.Cancel(ctx, "u1"))
	fresh, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)

	close(gate)
	require.ErrorIs(t, <-done, generation.ErrNoActiveGeneration)

	st, err := h.orch.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, fresh.RunID, st.RunID)
	assert.Equal(t, generation.StepInitialize, st.CurrentStep)

	data, err := h.store.GetAccumulatedData(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, data.WorkoutPlan)
}

func TestOrchestrator_AdvanceWithoutRun(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.Advance(context.Background(), "nobody")
	require.ErrorIs(t, err, generation.ErrNoActiveGeneration)
}

func TestOrchestrator_IncompleteAccumulatorFailsRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	st, err := h.orch.Advance(ctx, "u1")
	require.NoError(t, err)

	_, ok, err := h.store.CompareAndSwap(ctx, "u1", st.Version, st, &plan.Accumulated{InputSnapshot: happyInput()})
	require.NoError(t, err)
	require.True(t, ok)

	failed, err := h.orch.Advance(ctx, "u1")
	require.ErrorIs(t, err, plan.ErrIncompleteAccumulator)
	assert.Equal(t, generation.OutcomeFailed, failed.Outcome)
	assert.Contains(t, failed.ErrorMessage, "nutritionData")
	assert.Zero(t, h.stages.count(stages.StageWorkout))
}

func TestOrchestrator_PersistFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.persister.errs = []error{errors.New("database is locked")}

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = h.orch.Advance(ctx, "u1")
		require.NoError(t, err)
	}

	st, err := h.orch.Advance(ctx, "u1")
	require.ErrorIs(t, err, generation.ErrPersistence)
	assert.Equal(t, generation.StepShoppingList, st.CurrentStep)
	assert.Equal(t, generation.OutcomeFailed, st.Outcome)

	st, err = h.orch.Advance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, generation.StepComplete, st.CurrentStep)
	require.Len(t, h.persister.runs, 2)
	assert.Equal(t, h.persister.runs[0], h.persister.runs[1])
}

func TestOrchestrator_GetStatusFlagsStaleWithoutWriting(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	started, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)

	h.clock.Add(16 * time.Minute)
	st, err := h.orch.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Stale)
	assert.True(t, st.IsGenerating)

	raw, err := h.store.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, raw.Stale)
	assert.Equal(t, started.Version, raw.Version)
}

func TestOrchestrator_SchedulesEachTransition(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err = h.orch.Advance(ctx, "u1")
		require.NoError(t, err)
	}

	require.Len(t, h.sched.scheduled, 6)
	assert.Equal(t, scheduledAdvance{"u1", generation.StepInitialize, 0}, h.sched.scheduled[0])
	assert.Equal(t, scheduledAdvance{"u1", generation.StepWorkoutPlan, 2 * time.Second}, h.sched.scheduled[2])
	assert.Equal(t, generation.StepShoppingList, h.sched.scheduled[5].from)
	assert.Equal(t, []string{stages.StageWorkout, stages.StageMeal, stages.StageIngredients, stages.StageShopping}, h.observer.agents)
}

func TestOrchestrator_ResumeAll(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "u1", happyInput())
	require.NoError(t, err)
	_, err = h.orch.Advance(ctx, "u1")
	require.NoError(t, err)
	_, err = h.orch.Start(ctx, "u2", happyInput())
	require.NoError(t, err)
	require.True(t, h.orch.Cancel(ctx, "u2"))

	h.sched.scheduled = nil
	n, err := h.orch.ResumeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []scheduledAdvance{{"u1", generation.StepNutritionCalculation, 0}}, h.sched.scheduled)
}
