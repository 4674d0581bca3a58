package generation

import "fmt"

// Step is a position in the plan pipeline. Steps only move forward during a
// run; a new run starts again at StepInitialize.
type Step int

const (
	StepInitialize Step = iota
	StepNutritionCalculation
	StepWorkoutPlan
	StepMealPlan
	StepExtractIngredients
	StepShoppingList
	StepComplete
)

// TotalSteps is the number of transitions from StepInitialize to StepComplete.
const TotalSteps = int(StepComplete)

var stepNames = [...]string{
	"initialize",
	"nutrition_calculation",
	"workout_plan",
	"meal_plan",
	"extract_ingredients",
	"shopping_list",
	"complete",
}

var stepMessages = [...]string{
	"Preparing your plan",
	"Nutrition targets calculated, designing your workouts",
	"Workout plan ready, creating your meal plan",
	"Meal plan ready, extracting ingredients",
	"Ingredients extracted, building your shopping list",
	"Shopping list ready, saving your plan",
	"Your plan is ready",
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return s >= StepInitialize && s <= StepComplete
}

// Next returns the following step. StepComplete is terminal.
func (s Step) Next() Step {
	if s >= StepComplete {
		return StepComplete
	}
	return s + 1
}

// Message is the user-facing progress text shown while the run sits at s.
func (s Step) Message() string {
	if !s.Valid() {
		return ""
	}
	return stepMessages[s]
}

// ParseStep maps a step name back to its Step.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}
