package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"ai-fitness-coach/internal/plan"
)

const planUsage = "Usage: `/plan age=30 sex=male height=180 weight=80 activity=moderate goal=muscle_gain days=4`\n" +
	"Optional: `level=beginner equipment=dumbbells,bench diet=vegetarian allergies=peanuts meals=3 budget=120 store=Lidl minutes=45`\n" +
	"Use `_` for spaces in a store name."

// parseInputArgs builds a plan input from key=value arguments.
func parseInputArgs(args []string) (plan.Input, error) {
	var in plan.Input
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || value == "" {
			return plan.Input{}, fmt.Errorf("expected key=value, got %q", arg)
		}

		var err error
		switch strings.ToLower(key) {
		case "age":
			in.Age, err = strconv.Atoi(value)
		case "sex":
			in.Sex = value
		case "height":
			in.Height, err = strconv.ParseFloat(value, 64)
		case "weight":
			in.Weight, err = strconv.ParseFloat(value, 64)
		case "activity":
			in.ActivityLevel = value
		case "goal":
			in.FitnessGoal = value
		case "days":
			in.WorkoutDaysPerWeek, err = strconv.Atoi(value)
		case "level":
			in.FitnessLevel = value
		case "equipment":
			in.Equipment = splitList(value)
		case "diet":
			in.DietaryPreferences = splitList(value)
		case "allergies":
			in.Allergies = splitList(value)
		case "meals":
			in.MealsPerDay, err = strconv.Atoi(value)
		case "budget":
			in.WeeklyBudget, err = strconv.ParseFloat(value, 64)
		case "store":
			in.PreferredStore = strings.ReplaceAll(value, "_", " ")
		case "minutes":
			in.SessionMinutes, err = strconv.Atoi(value)
		default:
			return plan.Input{}, fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return plan.Input{}, fmt.Errorf("invalid value for %s: %q", key, value)
		}
	}
	return in, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
