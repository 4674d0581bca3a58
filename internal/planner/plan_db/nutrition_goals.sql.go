package plan_db

import (
	"context"
	"time"
)

const getNutritionGoal = `-- name: GetNutritionGoal :one
SELECT user_id, calories, protein, carbs, fat, updated_at
FROM nutrition_goals
WHERE user_id = ?
`

func (q *Queries) GetNutritionGoal(ctx context.Context, userID string) (NutritionGoal, error) {
	row := q.db.QueryRowContext(ctx, getNutritionGoal, userID)
	var i NutritionGoal
	err := row.Scan(
		&i.UserID,
		&i.Calories,
		&i.Protein,
		&i.Carbs,
		&i.Fat,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertNutritionGoal = `-- name: UpsertNutritionGoal :exec
INSERT INTO nutrition_goals (user_id, calories, protein, carbs, fat, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    calories = excluded.calories,
    protein = excluded.protein,
    carbs = excluded.carbs,
    fat = excluded.fat,
    updated_at = excluded.updated_at
`

type UpsertNutritionGoalParams struct {
	UserID    string
	Calories  int64
	Protein   int64
	Carbs     int64
	Fat       int64
	UpdatedAt time.Time
}

func (q *Queries) UpsertNutritionGoal(ctx context.Context, arg UpsertNutritionGoalParams) error {
	_, err := q.db.ExecContext(ctx, upsertNutritionGoal,
		arg.UserID,
		arg.Calories,
		arg.Protein,
		arg.Carbs,
		arg.Fat,
		arg.UpdatedAt,
	)
	return err
}
