package plan

import "strings"

// Weekdays in plan order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// NormalizeWeekday maps "monday", " MON " and similar to "Monday".
func NormalizeWeekday(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return "", false
	}
	for _, day := range Weekdays {
		full := strings.ToLower(day)
		if s == full || s == full[:3] {
			return day, true
		}
	}
	return "", false
}

// Exercise is one movement inside a training session.
type Exercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets"`
	Reps        string `json:"reps"`
	RestSeconds int    `json:"restSeconds,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// WorkoutDay is one weekday of the training plan.
type WorkoutDay struct {
	Day             string     `json:"day"`
	Focus           string     `json:"focus"`
	RestDay         bool       `json:"restDay"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Exercises       []Exercise `json:"exercises"`
}

// WorkoutPlan covers the seven weekdays in order.
type WorkoutPlan struct {
	Days  []WorkoutDay `json:"days"`
	Notes string       `json:"notes,omitempty"`
}

// TrainingDays counts the non-rest days.
func (w WorkoutPlan) TrainingDays() int {
	n := 0
	for _, d := range w.Days {
		if !d.RestDay {
			n++
		}
	}
	return n
}

// Macros are per-meal or per-day nutrition totals.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add returns the element-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// Meal is one eating occasion.
type Meal struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Macros      Macros   `json:"macros"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// MealDay is one weekday of the meal plan. Missing marks a day the upstream
// answer left out; its totals stay at zero.
type MealDay struct {
	Day        string `json:"day"`
	Meals      []Meal `json:"meals"`
	Totals     Macros `json:"totals"`
	Missing    bool   `json:"missing,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// MealPlan covers the seven weekdays in order and may already carry the
// structured ingredient list.
type MealPlan struct {
	Days                  []MealDay    `json:"days"`
	StructuredIngredients []Ingredient `json:"structuredIngredients,omitempty"`
}

// Ingredient is one aggregated purchase line.
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Category string  `json:"category"`
}
