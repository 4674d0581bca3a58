package plan_db

import (
	"time"
)

type Plan struct {
	ID          string
	UserID      string
	RunID       string
	Preferences string
	WorkoutPlan string
	MealPlan    string
	Active      bool
	CreatedAt   time.Time
}

type NutritionGoal struct {
	UserID    string
	Calories  int64
	Protein   int64
	Carbs     int64
	Fat       int64
	UpdatedAt time.Time
}
