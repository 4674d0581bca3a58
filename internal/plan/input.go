package plan

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"ai-fitness-coach/internal/nutrition"
)

// ErrInvalidInput is matched by every input validation failure.
var ErrInvalidInput = errors.New("invalid plan input")

// InputError lists every field that failed validation.
type InputError struct {
	Fields []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(e.Fields, ", "))
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Input is the user's request for a weekly plan.
type Input struct {
	Age                int      `json:"age"`
	Sex                string   `json:"sex"`
	Height             float64  `json:"height"`
	Weight             float64  `json:"weight"`
	ActivityLevel      string   `json:"activityLevel"`
	FitnessGoal        string   `json:"fitnessGoal"`
	WorkoutDaysPerWeek int      `json:"workoutDaysPerWeek"`
	FitnessLevel       string   `json:"fitnessLevel,omitempty"`
	Equipment          []string `json:"equipment,omitempty"`
	DietaryPreferences []string `json:"dietaryPreferences,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	MealsPerDay        int      `json:"mealsPerDay,omitempty"`
	WeeklyBudget       float64  `json:"weeklyBudget,omitempty"`
	PreferredStore     string   `json:"preferredStore,omitempty"`
	SessionMinutes     int      `json:"sessionMinutes,omitempty"`
}

var (
	sexes         = []string{"male", "female", "other"}
	fitnessLevels = []string{"beginner", "intermediate", "advanced"}
)

// Validate checks every field and returns an *InputError naming all failures.
func (in Input) Validate() error {
	var bad []string

	if in.Age < 13 || in.Age > 100 {
		bad = append(bad, "age")
	}
	if !slices.Contains(sexes, strings.ToLower(in.Sex)) {
		bad = append(bad, "sex")
	}
	if in.Height < 100 || in.Height > 250 {
		bad = append(bad, "height")
	}
	if in.Weight < 30 || in.Weight > 300 {
		bad = append(bad, "weight")
	}
	if !slices.Contains(nutrition.ActivityLevels(), strings.ToLower(in.ActivityLevel)) {
		bad = append(bad, "activityLevel")
	}
	if !slices.Contains(nutrition.Goals(), strings.ToLower(in.FitnessGoal)) {
		bad = append(bad, "fitnessGoal")
	}
	if in.WorkoutDaysPerWeek < 1 || in.WorkoutDaysPerWeek > 7 {
		bad = append(bad, "workoutDaysPerWeek")
	}
	if in.FitnessLevel != "" && !slices.Contains(fitnessLevels, strings.ToLower(in.FitnessLevel)) {
		bad = append(bad, "fitnessLevel")
	}
	if in.MealsPerDay < 0 || in.MealsPerDay > 6 {
		bad = append(bad, "mealsPerDay")
	}
	if in.WeeklyBudget < 0 {
		bad = append(bad, "weeklyBudget")
	}
	if in.SessionMinutes != 0 && (in.SessionMinutes < 10 || in.SessionMinutes > 180) {
		bad = append(bad, "sessionMinutes")
	}

	if len(bad) > 0 {
		return &InputError{Fields: bad}
	}
	return nil
}

// WithDefaults lower-cases enum fields and fills optional ones.
func (in Input) WithDefaults() Input {
	in.Sex = strings.ToLower(in.Sex)
	in.ActivityLevel = strings.ToLower(in.ActivityLevel)
	in.FitnessGoal = strings.ToLower(in.FitnessGoal)
	in.FitnessLevel = strings.ToLower(in.FitnessLevel)
	if in.FitnessLevel == "" {
		in.FitnessLevel = "beginner"
	}
	if in.MealsPerDay == 0 {
		in.MealsPerDay = 3
	}
	if in.SessionMinutes == 0 {
		in.SessionMinutes = 45
	}
	return in
}

// Profile extracts what the nutrition calculator needs.
func (in Input) Profile() nutrition.Profile {
	return nutrition.Profile{
		Age:           in.Age,
		Sex:           in.Sex,
		HeightCm:      in.Height,
		WeightKg:      in.Weight,
		ActivityLevel: in.ActivityLevel,
		Goal:          in.FitnessGoal,
	}
}
