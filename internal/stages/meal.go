package stages

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
)

// MissingDayDiagnostic marks a weekday filled in because the answer left it out.
const MissingDayDiagnostic = "day missing from upstream response"

const mealShape = `{
  "days": [
    {"day": "Monday", "meals": [
      {"type": "breakfast", "name": "Oats with berries", "description": "",
       "macros": {"calories": 450, "protein": 25, "carbs": 60, "fat": 12},
       "ingredients": ["80 g oats", "150 g blueberries"]}
    ]}
  ],
  "structuredIngredients": [{"name": "oats", "quantity": 560, "unit": "g", "category": "grains"}]
}`

// MealOptions tunes meal plan validation.
type MealOptions struct {
	// AllowMissingDays fills absent weekdays with an explicit diagnostic
	// instead of failing the stage.
	AllowMissingDays bool
}

// MealRequest is the input of the meal stage.
type MealRequest struct {
	Input     plan.Input
	Nutrition nutrition.Targets
	Workout   plan.WorkoutPlan
}

// MealResult is a validated weekly meal plan.
type MealResult struct {
	Plan plan.MealPlan
	Meta shared.AgentMeta
}

type mealPromptData struct {
	nutrition.Targets
	MealsPerDay        int
	DietaryPreferences []string
	Allergies          []string
}

// MealGenerator produces the weekly meal plan.
type MealGenerator struct {
	llm  llm.Completer
	opts MealOptions
}

// NewMealGenerator creates a new MealGenerator.
func NewMealGenerator(completer llm.Completer, opts MealOptions) *MealGenerator {
	return &MealGenerator{llm: completer, opts: opts}
}

// Generate asks the model for a meal plan and validates it.
func (g *MealGenerator) Generate(ctx context.Context, req MealRequest) (MealResult, error) {
	trainingDays := make([]string, 0, len(req.Workout.Days))
	for _, d := range req.Workout.Days {
		if !d.RestDay {
			trainingDays = append(trainingDays, d.Day)
		}
	}
	payload := map[string]any{
		"profile":      req.Input,
		"nutrition":    req.Nutrition,
		"trainingDays": trainingDays,
	}
	promptData := mealPromptData{
		Targets:            req.Nutrition,
		MealsPerDay:        req.Input.MealsPerDay,
		DietaryPreferences: req.Input.DietaryPreferences,
		Allergies:          req.Input.Allergies,
	}

	var raw plan.MealPlan
	meta, err := call(ctx, g.llm, StageMeal, "meal_prompt.md", promptData, payload, mealShape, &raw)
	if err != nil {
		return MealResult{Meta: meta}, err
	}

	normalized, err := ValidateMealPlan(raw, g.opts)
	if err != nil {
		return MealResult{Meta: meta}, &UpstreamGenerationError{Stage: StageMeal, Cause: err}
	}

	return MealResult{Plan: normalized, Meta: meta}, nil
}

// ValidateMealPlan checks days and meals, recomputes day totals and returns
// the plan ordered Monday to Sunday. Invalid structured ingredients are
// dropped so the extraction stage derives them instead.
func ValidateMealPlan(raw plan.MealPlan, opts MealOptions) (plan.MealPlan, error) {
	byDay := make(map[string]plan.MealDay, len(raw.Days))
	for _, d := range raw.Days {
		name, ok := plan.NormalizeWeekday(d.Day)
		if !ok {
			return plan.MealPlan{}, fmt.Errorf("unknown weekday %q", d.Day)
		}
		if _, dup := byDay[name]; dup {
			return plan.MealPlan{}, fmt.Errorf("weekday %s appears twice", name)
		}
		d.Day = name
		byDay[name] = d
	}
	if len(byDay) == 0 {
		return plan.MealPlan{}, fmt.Errorf("meal plan has no days")
	}

	out := plan.MealPlan{Days: make([]plan.MealDay, 0, len(plan.Weekdays))}
	var missingDays []string
	for _, day := range plan.Weekdays {
		d, ok := byDay[day]
		if !ok {
			missingDays = append(missingDays, day)
			out.Days = append(out.Days, plan.MealDay{
				Day:        day,
				Meals:      []plan.Meal{},
				Missing:    true,
				Diagnostic: MissingDayDiagnostic,
			})
			continue
		}

		if len(d.Meals) == 0 {
			return plan.MealPlan{}, fmt.Errorf("%s has no meals", day)
		}
		var totals plan.Macros
		for i, m := range d.Meals {
			if err := validateMeal(m); err != nil {
				return plan.MealPlan{}, fmt.Errorf("%s meal %d: %w", day, i+1, err)
			}
			m.Type = strings.ToLower(strings.TrimSpace(m.Type))
			d.Meals[i] = m
			totals = totals.Add(m.Macros)
		}
		d.Totals = roundMacros(totals)
		d.Missing = false
		d.Diagnostic = ""
		out.Days = append(out.Days, d)
	}

	if len(missingDays) > 0 {
		if !opts.AllowMissingDays {
			return plan.MealPlan{}, fmt.Errorf("missing weekdays: %s", strings.Join(missingDays, ", "))
		}
		log.Printf("meal plan missing weekdays %s, marked with diagnostic", strings.Join(missingDays, ", "))
	}

	if len(raw.StructuredIngredients) > 0 {
		merged, err := MergeIngredients(raw.StructuredIngredients)
		if err != nil {
			log.Printf("discarding structured ingredients from meal plan: %v", err)
		} else {
			out.StructuredIngredients = merged
		}
	}

	return out, nil
}

func validateMeal(m plan.Meal) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("meal has no name")
	}
	if strings.TrimSpace(m.Type) == "" {
		return fmt.Errorf("meal %q has no type", m.Name)
	}
	for label, v := range map[string]float64{
		"calories": m.Macros.Calories,
		"protein":  m.Macros.Protein,
		"carbs":    m.Macros.Carbs,
		"fat":      m.Macros.Fat,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("meal %q has invalid %s", m.Name, label)
		}
	}
	if m.Macros.Calories <= 0 {
		return fmt.Errorf("meal %q has no calories", m.Name)
	}
	return nil
}

func roundMacros(m plan.Macros) plan.Macros {
	r := func(v float64) float64 { return math.Round(v*10) / 10 }
	return plan.Macros{Calories: r(m.Calories), Protein: r(m.Protein), Carbs: r(m.Carbs), Fat: r(m.Fat)}
}
