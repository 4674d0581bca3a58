// Package stagetest provides canned model answers and scripted generators for
// tests that exercise the plan stages without a real provider.
package stagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/shopping"
)

// WorkoutPlan returns a valid week with the first trainingDays days as training days.
func WorkoutPlan(trainingDays int) plan.WorkoutPlan {
	wp := plan.WorkoutPlan{Notes: "Add 2.5 kg when all sets feel easy."}
	for i, day := range plan.Weekdays {
		d := plan.WorkoutDay{Day: day, Focus: "Recovery", RestDay: true, Exercises: []plan.Exercise{}}
		if i < trainingDays {
			d = plan.WorkoutDay{
				Day:             day,
				Focus:           "Full body",
				DurationMinutes: 45,
				Exercises: []plan.Exercise{
					{Name: "Squat", Sets: 4, Reps: "6-8", RestSeconds: 120},
					{Name: "Push-up", Sets: 3, Reps: "12", RestSeconds: 60},
				},
			}
		}
		wp.Days = append(wp.Days, d)
	}
	return wp
}

// MealPlan returns a valid week; structured adds a structured ingredient list.
func MealPlan(structured bool) plan.MealPlan {
	mp := plan.MealPlan{}
	for _, day := range plan.Weekdays {
		d := plan.MealDay{
			Day: day,
			Meals: []plan.Meal{
				{Type: "breakfast", Name: "Oats and berries", Macros: plan.Macros{Calories: 600, Protein: 30, Carbs: 90, Fat: 12}, Ingredients: []string{"100 g oats", "150 g berries"}},
				{Type: "lunch", Name: "Chicken rice bowl", Macros: plan.Macros{Calories: 900, Protein: 60, Carbs: 110, Fat: 20}, Ingredients: []string{"200 g chicken", "120 g rice"}},
				{Type: "dinner", Name: "Salmon and potatoes", Macros: plan.Macros{Calories: 850, Protein: 50, Carbs: 80, Fat: 30}, Ingredients: []string{"180 g salmon", "300 g potatoes"}},
			},
		}
		for _, m := range d.Meals {
			d.Totals = d.Totals.Add(m.Macros)
		}
		mp.Days = append(mp.Days, d)
	}
	if structured {
		mp.StructuredIngredients = Ingredients()
	}
	return mp
}

// Ingredients returns a week's aggregated ingredients.
func Ingredients() []plan.Ingredient {
	return []plan.Ingredient{
		{Name: "oats", Quantity: 700, Unit: "g", Category: "grains"},
		{Name: "berries", Quantity: 1050, Unit: "g", Category: "produce"},
		{Name: "chicken breast", Quantity: 1400, Unit: "g", Category: "meat"},
		{Name: "rice", Quantity: 840, Unit: "g", Category: "grains"},
		{Name: "salmon", Quantity: 1260, Unit: "g", Category: "seafood"},
		{Name: "potatoes", Quantity: 2100, Unit: "g", Category: "produce"},
	}
}

// ShoppingList returns an upstream-shaped list with only categories and one unpriced line.
func ShoppingList() shopping.List {
	return shopping.List{
		Categories: map[string][]shopping.Item{
			"grains":  {{Name: "Oats 1 kg", Quantity: 1, Unit: "kg", EstimatedPrice: 2.2}, {Name: "Rice 1 kg", Quantity: 1, Unit: "kg", EstimatedPrice: 1.9}},
			"produce": {{Name: "Frozen berries", Quantity: 1100, Unit: "g", EstimatedPrice: 6.5}, {Name: "Potatoes", Quantity: 2.5, Unit: "kg"}},
			"meat":    {{Name: "Chicken breast", Quantity: 1.4, Unit: "kg", EstimatedPrice: 11.9}},
			"seafood": {{Name: "Salmon fillets", Quantity: 1.3, Unit: "kg", EstimatedPrice: 18.5}},
		},
	}
}

// JSON marshals v or panics; fixtures are always serializable.
func JSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Completer answers structured requests by agent name.
type Completer struct {
	mu        sync.Mutex
	Responses map[string]string
	Errors    map[string]error
	Calls     map[string]int
}

// NewCompleter creates a Completer with canned answers for the given agents.
func NewCompleter(responses map[string]string) *Completer {
	return &Completer{
		Responses: responses,
		Errors:    map[string]error{},
		Calls:     map[string]int{},
	}
}

// Complete implements llm.Completer.
func (c *Completer) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls[req.Agent]++
	usage := shared.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Model: "stub"}
	if err := c.Errors[req.Agent]; err != nil {
		return llm.Completion{Usage: usage}, err
	}
	body, ok := c.Responses[req.Agent]
	if !ok {
		return llm.Completion{}, fmt.Errorf("no canned response for %s", req.Agent)
	}
	return llm.Completion{JSON: json.RawMessage(body), Usage: usage}, nil
}

// CallCount returns how many times an agent was called.
func (c *Completer) CallCount(agent string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[agent]
}

// ChatGenerator answers chat prompts by matching a marker in the system prompt.
// It drives the real StructuredClient end to end.
type ChatGenerator struct {
	mu      sync.Mutex
	answers map[string]string
	Calls   int
}

// NewChatGenerator returns a generator that knows the four stage prompts.
func NewChatGenerator(workoutDays int) *ChatGenerator {
	return &ChatGenerator{answers: map[string]string{
		"strength and conditioning coach": "```json\n" + JSON(WorkoutPlan(workoutDays)) + "\n```",
		"registered dietitian":            JSON(MealPlan(false)),
		"aggregated ingredient list":      JSON(map[string]any{"ingredients": Ingredients()}),
		"grocery planner":                 "Here is your list:\n" + JSON(ShoppingList()),
	}}
}

// Generate implements llm.ChatGenerator.
func (g *ChatGenerator) Generate(_ context.Context, systemPrompt, _ string) (llm.ContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++

	for marker, answer := range g.answers {
		if strings.Contains(systemPrompt, marker) {
			return llm.ContentResponse{
				Content: answer,
				Usage:   shared.TokenUsage{PromptTokens: 200, CompletionTokens: 400, TotalTokens: 600, Model: "scripted"},
			}, nil
		}
	}
	return llm.ContentResponse{}, fmt.Errorf("unexpected system prompt")
}

// CallCount returns how many prompts reached the generator.
func (g *ChatGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls
}
