// Package planner stores finished plans: the plan record, its shopping list
// and the nutrition goal the user now follows.
package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shopping"
)

// Preferences is the stored preferences section of a plan.
type Preferences struct {
	Input     plan.Input        `json:"input"`
	Nutrition nutrition.Targets `json:"nutrition"`
}

// StoredMealPlan is the stored meal section of a plan, carrying the
// ingredients and the normalized shopping list with it.
type StoredMealPlan struct {
	plan.MealPlan
	Ingredients  []plan.Ingredient `json:"ingredients"`
	ShoppingList shopping.List     `json:"shoppingList"`
}

// Persister writes finished plans. Persisting the same run twice returns the
// first plan's ID.
type Persister struct {
	db       *sql.DB
	plans    *PlanRepository
	goals    *GoalRepository
	shopping *shopping.Repository
	newID    func() string
}

func NewPersister(d *sql.DB) *Persister {
	return &Persister{
		db:       d,
		plans:    NewPlanRepository(d),
		goals:    NewGoalRepository(d),
		shopping: shopping.NewRepository(d),
		newID:    uuid.NewString,
	}
}

// Persist stores the plan of run runID in one transaction and returns its ID.
func (p *Persister) Persist(ctx context.Context, userID, runID string, in plan.PersistInputs) (string, error) {
	existing, err := p.plans.FindByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		log.Printf("Planner: run %s already persisted as plan %s", runID, existing.ID)
		return existing.ID, nil
	}

	in.ShoppingList = shopping.Normalize(in.ShoppingList)

	prefs, err := json.Marshal(Preferences{Input: in.Input, Nutrition: in.Nutrition})
	if err != nil {
		return "", fmt.Errorf("failed to marshal preferences: %w", err)
	}
	workout, err := json.Marshal(in.Workout)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workout plan: %w", err)
	}
	meals, err := json.Marshal(StoredMealPlan{MealPlan: in.MealPlan, Ingredients: in.Ingredients, ShoppingList: in.ShoppingList})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	planID := p.newID()
	now := time.Now().UTC()

	if err := p.plans.WithTx(tx).DeactivateActivePlans(ctx, userID); err != nil {
		return "", err
	}
	err = p.plans.WithTx(tx).CreatePlan(ctx, Plan{
		ID:          planID,
		UserID:      userID,
		RunID:       runID,
		Preferences: prefs,
		WorkoutPlan: workout,
		MealPlan:    meals,
		Active:      true,
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	if _, err := p.shopping.WithTx(tx).Save(ctx, &shopping.ShoppingList{
		UserID: userID,
		PlanID: planID,
		List:   in.ShoppingList,
	}); err != nil {
		return "", err
	}
	if err := p.goals.WithTx(tx).UpsertGoal(ctx, userID, in.Nutrition); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit plan: %w", err)
	}
	log.Printf("Planner: saved plan %s for user %s", planID, userID)
	return planID, nil
}

// Plans exposes the plan repository for read paths.
func (p *Persister) Plans() *PlanRepository {
	return p.plans
}

// Goals exposes the goal repository for read paths.
func (p *Persister) Goals() *GoalRepository {
	return p.goals
}

// DecodeMealPlan unpacks the meal section of a stored plan.
func DecodeMealPlan(p Plan) (StoredMealPlan, error) {
	var out StoredMealPlan
	if err := json.Unmarshal(p.MealPlan, &out); err != nil {
		return StoredMealPlan{}, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return out, nil
}
