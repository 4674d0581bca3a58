package app

import (
	"database/sql"
	"fmt"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/stages"
	"ai-fitness-coach/internal/storage"
)

// OpenStore returns the generation state backend named by kind.
func OpenStore(kind string, cfg *config.Config, db *sql.DB) (generation.Store, error) {
	switch kind {
	case config.StoreSQLite:
		return generation.NewSQLStore(db), nil
	case config.StoreFile:
		return storage.NewFileStore(cfg.StateDir)
	case config.StoreMemory:
		return generation.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported generation store %q", kind)
	}
}

// NewCoach builds the orchestrator and its stages over completer and binds
// scheduler to it.
func NewCoach(
	cfg *config.Config,
	completer llm.Completer,
	store generation.Store,
	persister generation.Persister,
	scheduler *generation.TimerScheduler,
	observer generation.Observer,
) *generation.Orchestrator {
	orch := generation.NewOrchestrator(generation.Deps{
		Store:       store,
		Workout:     stages.NewWorkoutGenerator(completer),
		Meal:        stages.NewMealGenerator(completer, stages.MealOptions{AllowMissingDays: cfg.Pipeline.AllowMissingMealDays}),
		Ingredients: stages.NewIngredientGenerator(completer),
		Shopping:    stages.NewShoppingGenerator(completer),
		Persister:   persister,
		Scheduler:   scheduler,
		Observer:    observer,
	}, generation.OptionsFromConfig(cfg.Pipeline))
	scheduler.Bind(orch)
	return orch
}
