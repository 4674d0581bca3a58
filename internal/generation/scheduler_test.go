package generation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-fitness-coach/internal/generation"
)

type fakeAdvancer struct {
	mu       sync.Mutex
	steps    map[string]generation.Step
	advanced []string
	inFlight int
	maxSeen  int
	hold     chan struct{}
}

func newFakeAdvancer() *fakeAdvancer {
	return &fakeAdvancer{steps: map[string]generation.Step{}}
}

func (f *fakeAdvancer) GetStatus(_ context.Context, userID string) (*generation.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, ok := f.steps[userID]
	if !ok {
		return nil, nil
	}
	return &generation.Status{UserID: userID, CurrentStep: step, IsGenerating: true}, nil
}

func (f *fakeAdvancer) Advance(ctx context.Context, userID string) (generation.Status, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.advanced = append(f.advanced, userID)
	f.steps[userID] = f.steps[userID].Next()
	return generation.Status{UserID: userID, CurrentStep: f.steps[userID]}, nil
}

func (f *fakeAdvancer) advancedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.advanced)
}

func TestTimerScheduler_FiresAfterDelay(t *testing.T) {
	adv := newFakeAdvancer()
	adv.steps["u1"] = generation.StepInitialize

	s := generation.NewTimerScheduler(2, time.Second)
	s.Bind(adv)
	defer s.Stop()

	s.Schedule("u1", generation.StepInitialize, 10*time.Millisecond)
	assert.True(t, s.Pending("u1"))

	require.Eventually(t, func() bool { return adv.advancedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Pending("u1"))
}

func TestTimerScheduler_SkipsWhenStepMovedOn(t *testing.T) {
	adv := newFakeAdvancer()
	adv.steps["u1"] = generation.StepWorkoutPlan

	s := generation.NewTimerScheduler(2, time.Second)
	s.Bind(adv)

	s.Schedule("u1", generation.StepNutritionCalculation, 0)
	s.Schedule("u2", generation.StepInitialize, 0)
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Zero(t, adv.advancedCount())
}

func TestTimerScheduler_NewerScheduleReplacesOlder(t *testing.T) {
	adv := newFakeAdvancer()
	adv.steps["u1"] = generation.StepNutritionCalculation

	s := generation.NewTimerScheduler(2, time.Second)
	s.Bind(adv)

	s.Schedule("u1", generation.StepInitialize, 20*time.Millisecond)
	s.Schedule("u1", generation.StepNutritionCalculation, 20*time.Millisecond)

	require.Eventually(t, func() bool { return adv.advancedCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	assert.Equal(t, 1, adv.advancedCount())
}

func TestTimerScheduler_CancelDropsPending(t *testing.T) {
	adv := newFakeAdvancer()
	adv.steps["u1"] = generation.StepInitialize

	s := generation.NewTimerScheduler(2, time.Second)
	s.Bind(adv)

	s.Schedule("u1", generation.StepInitialize, 30*time.Millisecond)
	s.Cancel("u1")
	assert.False(t, s.Pending("u1"))

	time.Sleep(60 * time.Millisecond)
	s.Stop()
	assert.Zero(t, adv.advancedCount())
}

func TestTimerScheduler_BoundsConcurrentAdvances(t *testing.T) {
	adv := newFakeAdvancer()
	adv.hold = make(chan struct{})
	for _, u := range []string{"u1", "u2", "u3"} {
		adv.steps[u] = generation.StepInitialize
	}

	s := generation.NewTimerScheduler(1, time.Second)
	s.Bind(adv)

	for _, u := range []string{"u1", "u2", "u3"} {
		s.Schedule(u, generation.StepInitialize, 0)
	}
	time.Sleep(50 * time.Millisecond)
	close(adv.hold)

	require.Eventually(t, func() bool { return adv.advancedCount() == 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	adv.mu.Lock()
	defer adv.mu.Unlock()
	assert.Equal(t, 1, adv.maxSeen)
}

func TestTimerScheduler_StopWaitsAndRejectsNewWork(t *testing.T) {
	adv := newFakeAdvancer()
	adv.steps["u1"] = generation.StepInitialize

	s := generation.NewTimerScheduler(1, time.Second)
	s.Bind(adv)
	s.Schedule("u1", generation.StepInitialize, time.Hour)
	s.Stop()

	assert.False(t, s.Pending("u1"))
	s.Schedule("u1", generation.StepInitialize, 0)
	assert.False(t, s.Pending("u1"))
	assert.Zero(t, adv.advancedCount())
}

func TestTimerScheduler_DrivesOrchestratorToCompletion(t *testing.T) {
	h := newHarness(t, nil)
	s := generation.NewTimerScheduler(2, 5*time.Second)
	orch := generation.NewOrchestrator(generation.Deps{
		Store:       h.store,
		Workout:     workoutStub{h.stages},
		Meal:        mealStub{h.stages},
		Ingredients: ingredientStub{h.stages},
		Shopping:    shoppingStub{h.stages},
		Persister:   h.persister,
		Scheduler:   s,
	}, generation.Options{Delays: map[generation.Step]time.Duration{}})
	s.Bind(orch)
	defer s.Stop()

	_, err := orch.Start(context.Background(), "u1", happyInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := orch.GetStatus(context.Background(), "u1")
		return err == nil && st != nil && st.CurrentStep == generation.StepComplete
	}, 2*time.Second, 10*time.Millisecond)

	result, err := orch.GetResult(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsComplete())
}
