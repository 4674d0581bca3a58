package plan

import (
	"errors"
	"testing"

	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/shopping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{
		Age:                30,
		Sex:                "male",
		Height:             180,
		Weight:             80,
		ActivityLevel:      "moderate",
		FitnessGoal:        "muscle_gain",
		WorkoutDaysPerWeek: 4,
	}
}

func TestInput_Validate(t *testing.T) {
	require.NoError(t, validInput().Validate())

	bad := Input{Age: 5, Sex: "robot", Height: 180, Weight: 80, ActivityLevel: "moderate", FitnessGoal: "muscle_gain", WorkoutDaysPerWeek: 9, WeeklyBudget: -1}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, []string{"age", "sex", "workoutDaysPerWeek", "weeklyBudget"}, inputErr.Fields)
	assert.Contains(t, err.Error(), "age, sex")
}

func TestInput_WithDefaults(t *testing.T) {
	in := validInput()
	in.Sex = "Male"
	got := in.WithDefaults()
	assert.Equal(t, "male", got.Sex)
	assert.Equal(t, 3, got.MealsPerDay)
	assert.Equal(t, "beginner", got.FitnessLevel)
	assert.Equal(t, 45, got.SessionMinutes)
}

func TestNormalizeWeekday(t *testing.T) {
	for in, want := range map[string]string{"monday": "Monday", " SUN ": "Sunday", "Wed": "Wednesday"} {
		got, ok := NormalizeWeekday(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := NormalizeWeekday("Funday")
	assert.False(t, ok)
	_, ok = NormalizeWeekday("mo")
	assert.False(t, ok)
}

func TestAccumulated_Accessors(t *testing.T) {
	acc := &Accumulated{InputSnapshot: validInput()}

	_, err := acc.WorkoutInputs()
	assert.True(t, errors.Is(err, ErrIncompleteAccumulator))
	assert.Contains(t, err.Error(), "nutritionData")

	acc.NutritionData = &nutrition.Targets{Calories: 2500}
	w, err := acc.WorkoutInputs()
	require.NoError(t, err)
	assert.Equal(t, 2500, w.Nutrition.Calories)

	_, err = acc.MealInputs()
	assert.Contains(t, err.Error(), "workoutPlan")

	acc.WorkoutPlan = &WorkoutPlan{}
	_, err = acc.ExtractionInputs()
	assert.Contains(t, err.Error(), "mealPlan")

	acc.MealPlan = &MealPlan{}
	_, err = acc.ShoppingInputs()
	assert.Contains(t, err.Error(), "ingredients")

	acc.Ingredients = []Ingredient{{Name: "Rice", Quantity: 1, Unit: "kg", Category: "grains"}}
	acc.InputSnapshot.WeeklyBudget = 80
	s, err := acc.ShoppingInputs()
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.Budget)
	assert.False(t, acc.IsComplete())

	acc.ShoppingList = &shopping.List{}
	p, err := acc.PersistInputs()
	require.NoError(t, err)
	assert.Len(t, p.Ingredients, 1)
	assert.True(t, acc.IsComplete())
}

func TestAccumulated_GapInEarlierStageIsReported(t *testing.T) {
	// A later field without the earlier ones still fails on the earliest gap.
	acc := &Accumulated{InputSnapshot: validInput(), MealPlan: &MealPlan{}}
	_, err := acc.ExtractionInputs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nutritionData")
}
