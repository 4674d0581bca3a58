package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	shoppingdb "ai-fitness-coach/internal/shopping/db"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	queries *shoppingdb.Queries
	db      *sql.DB
}

// NewRepository creates a new shopping list repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{
		queries: shoppingdb.New(d),
		db:      d,
	}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{queries: r.queries.WithTx(tx), db: r.db}
}

// Save creates a new shopping list in the database.
func (r *Repository) Save(ctx context.Context, list *ShoppingList) (int64, error) {
	listJSON, err := json.Marshal(list.List)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal shopping list: %w", err)
	}

	id, err := r.queries.InsertShoppingList(ctx, shoppingdb.InsertShoppingListParams{
		UserID:             list.UserID,
		PlanID:             list.PlanID,
		Items:              string(listJSON),
		TotalEstimatedCost: list.List.TotalEstimatedCost,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert shopping list: %w", err)
	}

	return id, nil
}

// GetByPlanID retrieves the shopping list of a plan, or nil when there is none.
func (r *Repository) GetByPlanID(ctx context.Context, planID string) (*ShoppingList, error) {
	dbList, err := r.queries.GetShoppingListByPlanID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping list by plan ID: %w", err)
	}

	var list List
	if err := json.Unmarshal([]byte(dbList.Items), &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list: %w", err)
	}

	return &ShoppingList{
		ID:        dbList.ID,
		UserID:    dbList.UserID,
		PlanID:    dbList.PlanID,
		List:      list,
		CreatedAt: dbList.CreatedAt,
	}, nil
}

// DeleteByPlanID deletes the shopping lists of a plan.
func (r *Repository) DeleteByPlanID(ctx context.Context, planID string) error {
	return r.queries.DeleteShoppingListByPlanID(ctx, planID)
}
