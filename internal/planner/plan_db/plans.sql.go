package plan_db

import (
	"context"
	"time"
)

const createPlan = `-- name: CreatePlan :exec
INSERT INTO plans (id, user_id, run_id, preferences, workout_plan, meal_plan, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreatePlanParams struct {
	ID          string
	UserID      string
	RunID       string
	Preferences string
	WorkoutPlan string
	MealPlan    string
	Active      bool
	CreatedAt   time.Time
}

func (q *Queries) CreatePlan(ctx context.Context, arg CreatePlanParams) error {
	_, err := q.db.ExecContext(ctx, createPlan,
		arg.ID,
		arg.UserID,
		arg.RunID,
		arg.Preferences,
		arg.WorkoutPlan,
		arg.MealPlan,
		arg.Active,
		arg.CreatedAt,
	)
	return err
}

const deactivateActivePlans = `-- name: DeactivateActivePlans :exec
UPDATE plans SET active = 0 WHERE user_id = ? AND active = 1
`

func (q *Queries) DeactivateActivePlans(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deactivateActivePlans, userID)
	return err
}

const getActivePlan = `-- name: GetActivePlan :one
SELECT id, user_id, run_id, preferences, workout_plan, meal_plan, active, created_at
FROM plans
WHERE user_id = ? AND active = 1
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetActivePlan(ctx context.Context, userID string) (Plan, error) {
	row := q.db.QueryRowContext(ctx, getActivePlan, userID)
	var i Plan
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.RunID,
		&i.Preferences,
		&i.WorkoutPlan,
		&i.MealPlan,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const getPlanByRunID = `-- name: GetPlanByRunID :one
SELECT id, user_id, run_id, preferences, workout_plan, meal_plan, active, created_at
FROM plans
WHERE run_id = ?
`

func (q *Queries) GetPlanByRunID(ctx context.Context, runID string) (Plan, error) {
	row := q.db.QueryRowContext(ctx, getPlanByRunID, runID)
	var i Plan
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.RunID,
		&i.Preferences,
		&i.WorkoutPlan,
		&i.MealPlan,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const listRecentPlansByUserID = `-- name: ListRecentPlansByUserID :many
SELECT id, user_id, run_id, preferences, workout_plan, meal_plan, active, created_at
FROM plans
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?
`

type ListRecentPlansByUserIDParams struct {
	UserID string
	Limit  int32
}

func (q *Queries) ListRecentPlansByUserID(ctx context.Context, arg ListRecentPlansByUserIDParams) ([]Plan, error) {
	rows, err := q.db.QueryContext(ctx, listRecentPlansByUserID, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Plan
	for rows.Next() {
		var i Plan
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.RunID,
			&i.Preferences,
			&i.WorkoutPlan,
			&i.MealPlan,
			&i.Active,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
