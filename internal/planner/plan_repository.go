package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/planner/plan_db"
)

// Plan represents a stored fitness plan. The plan sections are raw JSON.
type Plan struct {
	ID          string
	UserID      string
	RunID       string
	Preferences []byte
	WorkoutPlan []byte
	MealPlan    []byte
	Active      bool
	CreatedAt   time.Time
}

// PlanRepository is a database-backed repository for fitness plans.
type PlanRepository struct {
	queries *plan_db.Queries
	db      *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{
		queries: plan_db.New(d),
		db:      d,
	}
}

// WithTx returns a repository bound to tx.
func (r *PlanRepository) WithTx(tx *sql.Tx) *PlanRepository {
	return &PlanRepository{queries: r.queries.WithTx(tx), db: r.db}
}

// CreatePlan inserts a new plan.
func (r *PlanRepository) CreatePlan(ctx context.Context, p Plan) error {
	err := r.queries.CreatePlan(ctx, plan_db.CreatePlanParams{
		ID:          p.ID,
		UserID:      p.UserID,
		RunID:       p.RunID,
		Preferences: string(p.Preferences),
		WorkoutPlan: string(p.WorkoutPlan),
		MealPlan:    string(p.MealPlan),
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

// DeactivateActivePlans marks every active plan of the user inactive.
func (r *PlanRepository) DeactivateActivePlans(ctx context.Context, userID string) error {
	if err := r.queries.DeactivateActivePlans(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate plans for user %s: %w", userID, err)
	}
	return nil
}

// FindByRunID returns the plan written by a generation run, or nil.
func (r *PlanRepository) FindByRunID(ctx context.Context, runID string) (*Plan, error) {
	row, err := r.queries.GetPlanByRunID(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for run %s: %w", runID, err)
	}
	p := fromRow(row)
	return &p, nil
}

// GetActive returns the user's active plan, or nil.
func (r *PlanRepository) GetActive(ctx context.Context, userID string) (*Plan, error) {
	row, err := r.queries.GetActivePlan(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active plan for user %s: %w", userID, err)
	}
	p := fromRow(row)
	return &p, nil
}

// ListRecentByUserID retrieves the N most recent plans for a given user.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]Plan, error) {
	rows, err := r.queries.ListRecentPlansByUserID(ctx, plan_db.ListRecentPlansByUserIDParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent plans for user %s: %w", userID, err)
	}

	var plans []Plan
	for _, row := range rows {
		plans = append(plans, fromRow(row))
	}
	return plans, nil
}

func fromRow(row plan_db.Plan) Plan {
	return Plan{
		ID:          row.ID,
		UserID:      row.UserID,
		RunID:       row.RunID,
		Preferences: []byte(row.Preferences),
		WorkoutPlan: []byte(row.WorkoutPlan),
		MealPlan:    []byte(row.MealPlan),
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}
}
