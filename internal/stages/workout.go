package stages

import (
	"context"
	"fmt"
	"strings"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
)

const workoutShape = `{
  "days": [
    {"day": "Monday", "focus": "Upper body", "restDay": false, "durationMinutes": 45,
     "exercises": [{"name": "Bench press", "sets": 4, "reps": "8-10", "restSeconds": 90, "notes": ""}]}
  ],
  "notes": "progression advice"
}`

// WorkoutRequest is the input of the workout stage.
type WorkoutRequest struct {
	Input     plan.Input
	Nutrition nutrition.Targets
}

// WorkoutResult is a validated weekly training plan.
type WorkoutResult struct {
	Plan plan.WorkoutPlan
	Meta shared.AgentMeta
}

// WorkoutGenerator produces the weekly training plan.
type WorkoutGenerator struct {
	llm llm.Completer
}

// NewWorkoutGenerator creates a new WorkoutGenerator.
func NewWorkoutGenerator(completer llm.Completer) *WorkoutGenerator {
	return &WorkoutGenerator{llm: completer}
}

// Generate asks the model for a plan and validates it against the request.
func (g *WorkoutGenerator) Generate(ctx context.Context, req WorkoutRequest) (WorkoutResult, error) {
	payload := map[string]any{
		"profile":   req.Input,
		"nutrition": req.Nutrition,
	}

	var raw plan.WorkoutPlan
	meta, err := call(ctx, g.llm, StageWorkout, "workout_prompt.md", req.Input, payload, workoutShape, &raw)
	if err != nil {
		return WorkoutResult{Meta: meta}, err
	}

	normalized, err := ValidateWorkoutPlan(raw, req.Input.WorkoutDaysPerWeek)
	if err != nil {
		return WorkoutResult{Meta: meta}, &UpstreamGenerationError{Stage: StageWorkout, Cause: err}
	}

	return WorkoutResult{Plan: normalized, Meta: meta}, nil
}

// ValidateWorkoutPlan checks the seven weekdays and the training-day count and
// returns the plan ordered Monday to Sunday.
func ValidateWorkoutPlan(raw plan.WorkoutPlan, trainingDays int) (plan.WorkoutPlan, error) {
	byDay := make(map[string]plan.WorkoutDay, len(raw.Days))
	for _, d := range raw.Days {
		name, ok := plan.NormalizeWeekday(d.Day)
		if !ok {
			return plan.WorkoutPlan{}, fmt.Errorf("unknown weekday %q", d.Day)
		}
		if _, dup := byDay[name]; dup {
			return plan.WorkoutPlan{}, fmt.Errorf("weekday %s appears twice", name)
		}
		d.Day = name
		byDay[name] = d
	}

	var missingDays []string
	for _, day := range plan.Weekdays {
		if _, ok := byDay[day]; !ok {
			missingDays = append(missingDays, day)
		}
	}
	if len(missingDays) > 0 {
		return plan.WorkoutPlan{}, fmt.Errorf("missing weekdays: %s", strings.Join(missingDays, ", "))
	}

	out := plan.WorkoutPlan{Notes: strings.TrimSpace(raw.Notes), Days: make([]plan.WorkoutDay, 0, len(plan.Weekdays))}
	for _, day := range plan.Weekdays {
		d := byDay[day]
		if !d.RestDay {
			if len(d.Exercises) == 0 {
				return plan.WorkoutPlan{}, fmt.Errorf("%s is a training day without exercises", day)
			}
			for i, ex := range d.Exercises {
				if strings.TrimSpace(ex.Name) == "" {
					return plan.WorkoutPlan{}, fmt.Errorf("%s exercise %d has no name", day, i+1)
				}
				if ex.Sets <= 0 {
					return plan.WorkoutPlan{}, fmt.Errorf("%s exercise %q has no sets", day, ex.Name)
				}
			}
		}
		if d.Exercises == nil {
			d.Exercises = []plan.Exercise{}
		}
		out.Days = append(out.Days, d)
	}

	if got := out.TrainingDays(); got != trainingDays {
		return plan.WorkoutPlan{}, fmt.Errorf("expected %d training days, got %d", trainingDays, got)
	}

	return out, nil
}
