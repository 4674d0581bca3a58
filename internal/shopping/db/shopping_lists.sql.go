package shoppingdb

import (
	"context"
	"time"
)

const deleteShoppingListByPlanID = `-- name: DeleteShoppingListByPlanID :exec
DELETE FROM shopping_lists WHERE plan_id = ?
`

func (q *Queries) DeleteShoppingListByPlanID(ctx context.Context, planID string) error {
	_, err := q.db.ExecContext(ctx, deleteShoppingListByPlanID, planID)
	return err
}

const getShoppingListByPlanID = `-- name: GetShoppingListByPlanID :one
SELECT id, user_id, plan_id, items, total_estimated_cost, created_at FROM shopping_lists
WHERE plan_id = ?
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) GetShoppingListByPlanID(ctx context.Context, planID string) (ShoppingList, error) {
	row := q.db.QueryRowContext(ctx, getShoppingListByPlanID, planID)
	var i ShoppingList
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.PlanID,
		&i.Items,
		&i.TotalEstimatedCost,
		&i.CreatedAt,
	)
	return i, err
}

const insertShoppingList = `-- name: InsertShoppingList :one
INSERT INTO shopping_lists (user_id, plan_id, items, total_estimated_cost, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type InsertShoppingListParams struct {
	UserID             string
	PlanID             string
	Items              string
	TotalEstimatedCost float64
	CreatedAt          time.Time
}

func (q *Queries) InsertShoppingList(ctx context.Context, arg InsertShoppingListParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertShoppingList,
		arg.UserID,
		arg.PlanID,
		arg.Items,
		arg.TotalEstimatedCost,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}
