// Package nutrition derives daily calorie, macro and water targets from a
// body profile using the Mifflin-St Jeor equation.
package nutrition

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProfile is returned when a profile cannot produce targets.
var ErrInvalidProfile = errors.New("invalid nutrition profile")

// Profile is the subset of plan input the calculator needs.
type Profile struct {
	Age           int
	Sex           string
	HeightCm      float64
	WeightKg      float64
	ActivityLevel string
	Goal          string
}

// Targets are whole-number daily targets.
type Targets struct {
	BMR      int `json:"bmr"`
	TDEE     int `json:"tdee"`
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
	WaterMl  int `json:"waterMl"`
}

var activityMultipliers = map[string]float64{
	"sedentary":   1.2,
	"light":       1.375,
	"moderate":    1.55,
	"active":      1.725,
	"very_active": 1.9,
}

var calorieAdjustments = map[string]float64{
	"weight_loss":     -500,
	"muscle_gain":     300,
	"maintenance":     0,
	"general_fitness": 0,
	"endurance":       200,
}

var proteinPerKg = map[string]float64{
	"weight_loss": 2.2,
	"muscle_gain": 2.0,
}

const (
	defaultProteinPerKg = 1.6
	fatShare            = 0.25
	waterMlPerKg        = 35
	minCaloriesMale     = 1500
	minCaloriesOther    = 1200
)

// ActivityLevels lists the accepted activity level keys.
func ActivityLevels() []string {
	return []string{"sedentary", "light", "moderate", "active", "very_active"}
}

// Goals lists the accepted fitness goal keys.
func Goals() []string {
	return []string{"weight_loss", "muscle_gain", "maintenance", "general_fitness", "endurance"}
}

// Calculate returns the daily targets for p.
func Calculate(p Profile) (Targets, error) {
	if p.Age <= 0 || p.HeightCm <= 0 || p.WeightKg <= 0 {
		return Targets{}, fmt.Errorf("%w: age, height and weight must be positive", ErrInvalidProfile)
	}

	multiplier, ok := activityMultipliers[normalize(p.ActivityLevel)]
	if !ok {
		return Targets{}, fmt.Errorf("%w: unknown activity level %q", ErrInvalidProfile, p.ActivityLevel)
	}
	goal := normalize(p.Goal)
	adjustment, ok := calorieAdjustments[goal]
	if !ok {
		return Targets{}, fmt.Errorf("%w: unknown fitness goal %q", ErrInvalidProfile, p.Goal)
	}

	sex := normalize(p.Sex)
	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	switch sex {
	case "male":
		bmr += 5
	case "female":
		bmr -= 161
	default:
		bmr -= 78
	}

	tdee := bmr * multiplier
	calories := tdee + adjustment
	if goal == "weight_loss" {
		floor := float64(minCaloriesOther)
		if sex == "male" {
			floor = minCaloriesMale
		}
		calories = math.Max(calories, floor)
	}

	perKg, ok := proteinPerKg[goal]
	if !ok {
		perKg = defaultProteinPerKg
	}
	protein := perKg * p.WeightKg
	fat := calories * fatShare / 9
	carbs := math.Max(0, (calories-protein*4-fat*9)/4)

	return Targets{
		BMR:      round(bmr),
		TDEE:     round(tdee),
		Calories: round(calories),
		Protein:  round(protein),
		Carbs:    round(carbs),
		Fat:      round(fat),
		WaterMl:  round(p.WeightKg * waterMlPerKg),
	}, nil
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func round(v float64) int {
	return int(math.Round(v))
}
