package plan

import (
	"errors"
	"fmt"

	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/shopping"
)

// ErrIncompleteAccumulator means a stage was reached without the output of an
// earlier stage. The run cannot continue.
var ErrIncompleteAccumulator = errors.New("accumulated plan data is incomplete")

// Accumulated is the per-run working document. Each field is filled once by
// the stage that produces it.
type Accumulated struct {
	InputSnapshot Input              `json:"inputSnapshot"`
	NutritionData *nutrition.Targets `json:"nutritionData,omitempty"`
	WorkoutPlan   *WorkoutPlan       `json:"workoutPlan,omitempty"`
	MealPlan      *MealPlan          `json:"mealPlan,omitempty"`
	Ingredients   []Ingredient       `json:"ingredients,omitempty"`
	ShoppingList  *shopping.List     `json:"shoppingList,omitempty"`
	PlanID        string             `json:"planId,omitempty"`
}

// WorkoutInputs is what the workout stage may read.
type WorkoutInputs struct {
	Input     Input
	Nutrition nutrition.Targets
}

// MealInputs is what the meal stage may read.
type MealInputs struct {
	Input     Input
	Nutrition nutrition.Targets
	Workout   WorkoutPlan
}

// ExtractionInputs is what the ingredient extraction stage may read.
type ExtractionInputs struct {
	Input    Input
	MealPlan MealPlan
}

// ShoppingInputs is what the shopping list stage may read.
type ShoppingInputs struct {
	Ingredients []Ingredient
	Budget      float64
	Store       string
}

// PersistInputs carries every stage output.
type PersistInputs struct {
	Input        Input
	Nutrition    nutrition.Targets
	Workout      WorkoutPlan
	MealPlan     MealPlan
	Ingredients  []Ingredient
	ShoppingList shopping.List
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrIncompleteAccumulator, field)
}

// WorkoutInputs returns the inputs of the workout stage.
func (a *Accumulated) WorkoutInputs() (WorkoutInputs, error) {
	if a.NutritionData == nil {
		return WorkoutInputs{}, missing("nutritionData")
	}
	return WorkoutInputs{Input: a.InputSnapshot, Nutrition: *a.NutritionData}, nil
}

// MealInputs returns the inputs of the meal stage.
func (a *Accumulated) MealInputs() (MealInputs, error) {
	w, err := a.WorkoutInputs()
	if err != nil {
		return MealInputs{}, err
	}
	if a.WorkoutPlan == nil {
		return MealInputs{}, missing("workoutPlan")
	}
	return MealInputs{Input: w.Input, Nutrition: w.Nutrition, Workout: *a.WorkoutPlan}, nil
}

// ExtractionInputs returns the inputs of the ingredient extraction stage.
func (a *Accumulated) ExtractionInputs() (ExtractionInputs, error) {
	if _, err := a.MealInputs(); err != nil {
		return ExtractionInputs{}, err
	}
	if a.MealPlan == nil {
		return ExtractionInputs{}, missing("mealPlan")
	}
	return ExtractionInputs{Input: a.InputSnapshot, MealPlan: *a.MealPlan}, nil
}

// ShoppingInputs returns the inputs of the shopping list stage.
func (a *Accumulated) ShoppingInputs() (ShoppingInputs, error) {
	if _, err := a.ExtractionInputs(); err != nil {
		return ShoppingInputs{}, err
	}
	if len(a.Ingredients) == 0 {
		return ShoppingInputs{}, missing("ingredients")
	}
	return ShoppingInputs{
		Ingredients: append([]Ingredient(nil), a.Ingredients...),
		Budget:      a.InputSnapshot.WeeklyBudget,
		Store:       a.InputSnapshot.PreferredStore,
	}, nil
}

// PersistInputs returns every stage output, for the final persistence step.
func (a *Accumulated) PersistInputs() (PersistInputs, error) {
	s, err := a.ShoppingInputs()
	if err != nil {
		return PersistInputs{}, err
	}
	if a.ShoppingList == nil {
		return PersistInputs{}, missing("shoppingList")
	}
	return PersistInputs{
		Input:        a.InputSnapshot,
		Nutrition:    *a.NutritionData,
		Workout:      *a.WorkoutPlan,
		MealPlan:     *a.MealPlan,
		Ingredients:  s.Ingredients,
		ShoppingList: *a.ShoppingList,
	}, nil
}

// IsComplete reports whether every stage output is present.
func (a *Accumulated) IsComplete() bool {
	_, err := a.PersistInputs()
	return err == nil
}
