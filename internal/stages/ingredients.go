package stages

import (
	"context"
	"fmt"
	"math"
	"strings"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/shopping"
)

const ingredientsShape = `{
  "ingredients": [{"name": "chicken breast", "quantity": 1200, "unit": "g", "category": "meat"}]
}`

// ExtractionRequest is the input of the ingredient extraction stage.
type ExtractionRequest struct {
	MealPlan plan.MealPlan
}

// IngredientResult is the aggregated ingredient list of a meal plan.
type IngredientResult struct {
	Ingredients []plan.Ingredient
	Meta        shared.AgentMeta
}

// IngredientGenerator extracts an aggregated ingredient list from a meal plan.
type IngredientGenerator struct {
	llm llm.Completer
}

// NewIngredientGenerator creates a new IngredientGenerator.
func NewIngredientGenerator(completer llm.Completer) *IngredientGenerator {
	return &IngredientGenerator{llm: completer}
}

// Generate asks the model for the ingredient list and merges duplicates.
func (g *IngredientGenerator) Generate(ctx context.Context, req ExtractionRequest) (IngredientResult, error) {
	var raw struct {
		Ingredients []plan.Ingredient `json:"ingredients"`
	}
	meta, err := call(ctx, g.llm, StageIngredients, "ingredients_prompt.md", nil, req.MealPlan, ingredientsShape, &raw)
	if err != nil {
		return IngredientResult{Meta: meta}, err
	}

	merged, err := MergeIngredients(raw.Ingredients)
	if err != nil {
		return IngredientResult{Meta: meta}, &UpstreamGenerationError{Stage: StageIngredients, Cause: err}
	}

	return IngredientResult{Ingredients: merged, Meta: meta}, nil
}

// MergeIngredients validates ingredients and merges duplicates by name and
// unit, summing quantities. First-seen order is kept; blank categories
// become shopping.DefaultCategory.
func MergeIngredients(in []plan.Ingredient) ([]plan.Ingredient, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("no ingredients")
	}

	index := make(map[string]int, len(in))
	out := make([]plan.Ingredient, 0, len(in))
	for i, ing := range in {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			return nil, fmt.Errorf("ingredient %d has no name", i+1)
		}
		if math.IsNaN(ing.Quantity) || math.IsInf(ing.Quantity, 0) || ing.Quantity < 0 {
			return nil, fmt.Errorf("ingredient %q has invalid quantity", ing.Name)
		}
		ing.Unit = strings.ToLower(strings.TrimSpace(ing.Unit))
		ing.Category = shopping.NormalizeCategory(ing.Category)

		key := strings.ToLower(ing.Name) + "|" + ing.Unit
		if j, seen := index[key]; seen {
			out[j].Quantity += ing.Quantity
			if out[j].Category == shopping.DefaultCategory {
				out[j].Category = ing.Category
			}
			continue
		}
		index[key] = len(out)
		out = append(out, ing)
	}
	return out, nil
}
