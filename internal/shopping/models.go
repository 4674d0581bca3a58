package shopping

import "time"

// Item is one line of a shopping list.
type Item struct {
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	Category       string  `json:"category"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	PriceEstimated bool    `json:"priceEstimated,omitempty"`
}

// List carries the same items twice: flat, and keyed by category.
type List struct {
	Items              []Item            `json:"items"`
	Categories         map[string][]Item `json:"categories"`
	TotalEstimatedCost float64           `json:"totalEstimatedCost"`
	Budget             float64           `json:"budget,omitempty"`
	Store              string            `json:"store,omitempty"`
	OverBudget         bool              `json:"overBudget"`
}

// ShoppingList is a stored shopping list linked to a plan.
type ShoppingList struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	List      List      `json:"list"`
	CreatedAt time.Time `json:"created_at"`
}
