package stages

import (
	"context"
	"fmt"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/shopping"
)

const shoppingShape = `{
  "items": [{"name": "Chicken breast 1 kg", "quantity": 1, "unit": "kg", "category": "meat", "estimatedPrice": 9.5}],
  "categories": {"meat": [{"name": "Chicken breast 1 kg", "quantity": 1, "unit": "kg", "estimatedPrice": 9.5}]}
}`

// ShoppingRequest is the input of the shopping list stage.
type ShoppingRequest struct {
	Ingredients []plan.Ingredient
	Budget      float64
	Store       string
}

// ShoppingResult is a normalized shopping list.
type ShoppingResult struct {
	List shopping.List
	Meta shared.AgentMeta
}

type shoppingPromptData struct {
	Budget float64
	Store  string
}

// ShoppingGenerator prices the ingredient list.
type ShoppingGenerator struct {
	llm llm.Completer
}

// NewShoppingGenerator creates a new ShoppingGenerator.
func NewShoppingGenerator(completer llm.Completer) *ShoppingGenerator {
	return &ShoppingGenerator{llm: completer}
}

// Generate asks the model for a priced list and normalizes it into both shapes.
func (g *ShoppingGenerator) Generate(ctx context.Context, req ShoppingRequest) (ShoppingResult, error) {
	payload := map[string]any{
		"ingredients": req.Ingredients,
		"budget":      req.Budget,
		"store":       req.Store,
	}

	var raw shopping.List
	meta, err := call(ctx, g.llm, StageShopping, "shopping_prompt.md",
		shoppingPromptData{Budget: req.Budget, Store: req.Store}, payload, shoppingShape, &raw)
	if err != nil {
		return ShoppingResult{Meta: meta}, err
	}

	raw.Budget = req.Budget
	raw.Store = req.Store
	list := shopping.Normalize(raw)
	if len(list.Items) == 0 {
		return ShoppingResult{Meta: meta}, &UpstreamGenerationError{
			Stage: StageShopping,
			Cause: fmt.Errorf("shopping list has no items"),
		}
	}

	return ShoppingResult{List: list, Meta: meta}, nil
}
