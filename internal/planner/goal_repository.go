package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/planner/plan_db"
)

// NutritionGoal is the daily target the user is currently following.
type NutritionGoal struct {
	UserID    string
	Calories  int
	Protein   int
	Carbs     int
	Fat       int
	UpdatedAt time.Time
}

// GoalRepository stores one nutrition goal per user.
type GoalRepository struct {
	queries *plan_db.Queries
}

func NewGoalRepository(d *sql.DB) *GoalRepository {
	return &GoalRepository{queries: plan_db.New(d)}
}

// WithTx returns a repository bound to tx.
func (r *GoalRepository) WithTx(tx *sql.Tx) *GoalRepository {
	return &GoalRepository{queries: r.queries.WithTx(tx)}
}

// UpsertGoal replaces the user's goal with the given targets.
func (r *GoalRepository) UpsertGoal(ctx context.Context, userID string, t nutrition.Targets) error {
	err := r.queries.UpsertNutritionGoal(ctx, plan_db.UpsertNutritionGoalParams{
		UserID:    userID,
		Calories:  int64(t.Calories),
		Protein:   int64(t.Protein),
		Carbs:     int64(t.Carbs),
		Fat:       int64(t.Fat),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert nutrition goal: %w", err)
	}
	return nil
}

// GetGoal returns the user's goal, or nil.
func (r *GoalRepository) GetGoal(ctx context.Context, userID string) (*NutritionGoal, error) {
	row, err := r.queries.GetNutritionGoal(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nutrition goal: %w", err)
	}
	return &NutritionGoal{
		UserID:    row.UserID,
		Calories:  int(row.Calories),
		Protein:   int(row.Protein),
		Carbs:     int(row.Carbs),
		Fat:       int(row.Fat),
		UpdatedAt: row.UpdatedAt,
	}, nil
}
