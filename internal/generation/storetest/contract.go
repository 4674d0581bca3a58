// Package storetest holds the behaviour every generation.Store must share.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
)

// Input returns a valid plan input.
func Input() plan.Input {
	return plan.Input{
		Age:                30,
		Sex:                "male",
		Height:             180,
		Weight:             80,
		ActivityLevel:      "moderate",
		FitnessGoal:        "muscle_gain",
		WorkoutDaysPerWeek: 4,
		FitnessLevel:       "intermediate",
		MealsPerDay:        3,
		WeeklyBudget:       120,
		PreferredStore:     "Lidl",
		SessionMinutes:     45,
	}
}

// NewStatus returns a fresh generating status for userID.
func NewStatus(userID, runID string) generation.Status {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return generation.Status{
		UserID:                    userID,
		RunID:                     runID,
		IsGenerating:              true,
		CurrentStep:               generation.StepInitialize,
		StepMessage:               generation.StepInitialize.Message(),
		EstimatedSecondsRemaining: 120,
		TotalSteps:                generation.TotalSteps,
		Outcome:                   generation.OutcomeRunning,
		StartedAt:                 now,
		UpdatedAt:                 now,
	}
}

// RunContractTests checks a Store implementation. newStore must return an
// empty store.
func RunContractTests(t *testing.T, newStore func(t *testing.T) generation.Store) {
	ctx := context.Background()

	t.Run("AbsentUserReadsNil", func(t *testing.T) {
		s := newStore(t)

		st, err := s.GetStatus(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, st)

		data, err := s.GetAccumulatedData(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, data)

		in, err := s.GetInputSnapshot(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, in)
	})

	t.Run("CreateIfIdleStoresStatusInputAndData", func(t *testing.T) {
		s := newStore(t)

		st, created, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)
		require.True(t, created)
		assert.Equal(t, int64(1), st.Version)
		assert.Equal(t, "run-1", st.RunID)

		got, err := s.GetStatus(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, st.Version, got.Version)
		assert.True(t, got.IsGenerating)
		assert.Equal(t, generation.StepInitialize, got.CurrentStep)
		assert.Equal(t, generation.OutcomeRunning, got.Outcome)
		assert.WithinDuration(t, st.StartedAt, got.StartedAt, time.Millisecond)

		in, err := s.GetInputSnapshot(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, in)
		assert.Equal(t, Input(), *in)

		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, Input(), data.InputSnapshot)
		assert.Nil(t, data.NutritionData)
	})

	t.Run("CreateIfIdleKeepsGeneratingRun", func(t *testing.T) {
		s := newStore(t)

		first, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		other := Input()
		other.Age = 50
		st, created, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-2"), other)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "run-1", st.RunID)
		assert.Equal(t, first.Version, st.Version)

		in, err := s.GetInputSnapshot(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 30, in.Age)
	})

	t.Run("CreateIfIdleReplacesFinishedRun", func(t *testing.T) {
		s := newStore(t)

		first, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		done := first
		done.IsGenerating = false
		done.Outcome = generation.OutcomeCompleted
		targets := nutrition.Targets{Calories: 2500}
		_, ok, err := s.CompareAndSwap(ctx, "u1", first.Version, done, &plan.Accumulated{InputSnapshot: Input(), NutritionData: &targets})
		require.NoError(t, err)
		require.True(t, ok)

		st, created, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-2"), Input())
		require.NoError(t, err)
		require.True(t, created)
		assert.Equal(t, "run-2", st.RunID)
		assert.Equal(t, first.Version+2, st.Version)

		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, data.NutritionData)
	})

	t.Run("CompareAndSwapFencesVersionAndRun", func(t *testing.T) {
		s := newStore(t)

		st, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		next := st
		next.CurrentStep = generation.StepNutritionCalculation
		targets := nutrition.Targets{Calories: 2500, Protein: 160}
		swapped, ok, err := s.CompareAndSwap(ctx, "u1", st.Version, next, &plan.Accumulated{InputSnapshot: Input(), NutritionData: &targets})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, st.Version+1, swapped.Version)
		assert.Equal(t, generation.StepNutritionCalculation, swapped.CurrentStep)

		stale := next
		stale.CurrentStep = generation.StepWorkoutPlan
		cur, ok, err := s.CompareAndSwap(ctx, "u1", st.Version, stale, nil)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NotNil(t, cur)
		assert.Equal(t, generation.StepNutritionCalculation, cur.CurrentStep)
		assert.Equal(t, swapped.Version, cur.Version)

		zombie := next
		zombie.RunID = "run-0"
		_, ok, err = s.CompareAndSwap(ctx, "u1", swapped.Version, zombie, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, data.NutritionData)
		assert.Equal(t, 2500, data.NutritionData.Calories)
	})

	t.Run("CompareAndSwapWithoutDataKeepsData", func(t *testing.T) {
		s := newStore(t)

		st, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)
		targets := nutrition.Targets{Calories: 2000}
		st1, ok, err := s.CompareAndSwap(ctx, "u1", st.Version, st, &plan.Accumulated{InputSnapshot: Input(), NutritionData: &targets})
		require.NoError(t, err)
		require.True(t, ok)

		claim := *st1
		claim.ClaimToken = "token"
		claim.ClaimedAt = time.Now().UTC().Truncate(time.Millisecond)
		st2, ok, err := s.CompareAndSwap(ctx, "u1", st1.Version, claim, nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "token", st2.ClaimToken)

		got, err := s.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "token", got.ClaimToken)
		assert.WithinDuration(t, claim.ClaimedAt, got.ClaimedAt, time.Millisecond)

		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, data.NutritionData)
		assert.Equal(t, 2000, data.NutritionData.Calories)
	})

	t.Run("CompareAndSwapOnMissingRecord", func(t *testing.T) {
		s := newStore(t)

		cur, ok, err := s.CompareAndSwap(ctx, "ghost", 1, NewStatus("ghost", "run-1"), nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, cur)
	})

	t.Run("ConcurrentSwapsHaveOneWinner", func(t *testing.T) {
		s := newStore(t)

		st, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := st
				next.CurrentStep = generation.StepNutritionCalculation
				_, ok, err := s.CompareAndSwap(ctx, "u1", st.Version, next, nil)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("SetStatusUpsertsAndKeepsData", func(t *testing.T) {
		s := newStore(t)

		st, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		st.IsGenerating = false
		st.Outcome = generation.OutcomeCancelled
		st.ErrorMessage = "cancelled"
		require.NoError(t, s.SetStatus(ctx, st))

		got, err := s.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, got.IsGenerating)
		assert.Equal(t, generation.OutcomeCancelled, got.Outcome)
		assert.Equal(t, st.Version+1, got.Version)

		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, data)

		require.NoError(t, s.SetStatus(ctx, NewStatus("u2", "run-9")))
		got, err = s.GetStatus(ctx, "u2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("DeleteStatusIsIdempotent", func(t *testing.T) {
		s := newStore(t)

		_, _, err := s.CreateIfIdle(ctx, NewStatus("u1", "run-1"), Input())
		require.NoError(t, err)

		require.NoError(t, s.DeleteStatus(ctx, "u1"))
		require.NoError(t, s.DeleteStatus(ctx, "u1"))

		st, err := s.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, st)
		data, err := s.GetAccumulatedData(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}
