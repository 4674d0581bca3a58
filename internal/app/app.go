// Package app implements the command-line flows on top of the generation
// orchestrator: start a run and follow it, inspect it, and read stored plans.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
)

// Coach is the part of the orchestrator the CLI uses.
type Coach interface {
	Start(ctx context.Context, userID string, input plan.Input) (generation.Status, error)
	GetStatus(ctx context.Context, userID string) (*generation.Status, error)
	Cancel(ctx context.Context, userID string) bool
	GetResult(ctx context.Context, userID string) (*plan.Accumulated, error)
}

// ErrGenerationFailed is returned by Generate when the run ends failed or cancelled.
var ErrGenerationFailed = errors.New("generation did not complete")

// App holds the application's dependencies.
type App struct {
	coach        Coach
	plans        *planner.PlanRepository
	metricsStore *metrics.Store
	out          io.Writer

	// PollInterval is how often Generate re-reads the run.
	PollInterval time.Duration
}

// NewApp creates and initializes a new App instance. plans and metricsStore
// may be nil when the commands that need them are not used.
func NewApp(coach Coach, plans *planner.PlanRepository, metricsStore *metrics.Store, out io.Writer) *App {
	return &App{
		coach:        coach,
		plans:        plans,
		metricsStore: metricsStore,
		out:          out,
		PollInterval: time.Second,
	}
}

// Generate starts a run for userID, follows it until it ends and prints the plan.
func (a *App) Generate(ctx context.Context, userID string, input plan.Input) error {
	st, err := a.coach.Start(ctx, userID, input)
	if err != nil {
		return fmt.Errorf("failed to start generation: %w", err)
	}
	fmt.Fprintf(a.out, "Generating plan (run %s)...\n", st.RunID)
	last := RenderStatus(&st)
	fmt.Fprintln(a.out, last)

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cur, err := a.coach.GetStatus(ctx, userID)
		if err != nil {
			log.Printf("CLI: failed to read status: %v", err)
			continue
		}
		if cur == nil || cur.RunID != st.RunID {
			return fmt.Errorf("%w: run %s was removed", ErrGenerationFailed, st.RunID)
		}

		if line := RenderStatus(cur); line != last {
			fmt.Fprintln(a.out, line)
			last = line
		}
		if cur.IsGenerating {
			continue
		}

		switch cur.Outcome {
		case generation.OutcomeCompleted:
			return a.Result(ctx, userID)
		case generation.OutcomeFailed:
			return fmt.Errorf("%w: %s", ErrGenerationFailed, cur.ErrorMessage)
		default:
			return fmt.Errorf("%w: %s", ErrGenerationFailed, cur.Outcome)
		}
	}
}

// Status prints the user's current run.
func (a *App) Status(ctx context.Context, userID string) error {
	st, err := a.coach.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(a.out, "No generation for %s.\n", userID)
		return nil
	}
	fmt.Fprintln(a.out, RenderStatus(st))
	return nil
}

// Result prints the finished plan of the user's latest run.
func (a *App) Result(ctx context.Context, userID string) error {
	acc, err := a.coach.GetResult(ctx, userID)
	if err != nil {
		return err
	}
	if acc == nil {
		fmt.Fprintf(a.out, "No finished plan for %s.\n", userID)
		return nil
	}
	fmt.Fprintln(a.out, RenderPlan(acc))
	return nil
}

// Cancel stops the user's run.
func (a *App) Cancel(ctx context.Context, userID string) error {
	if a.coach.Cancel(ctx, userID) {
		fmt.Fprintln(a.out, "Generation cancelled.")
	} else {
		fmt.Fprintln(a.out, "Nothing to cancel.")
	}
	return nil
}

// History prints the user's most recent stored plans.
func (a *App) History(ctx context.Context, userID string, limit int) error {
	if a.plans == nil {
		return errors.New("plan history requires the sqlite store")
	}
	plans, err := a.plans.ListRecentByUserID(ctx, userID, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, RenderHistory(plans, time.Now()))
	return nil
}

// CleanupMetrics removes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) error {
	if a.metricsStore == nil {
		return errors.New("metrics store is not configured")
	}
	n, err := a.metricsStore.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Successfully removed %d old metric records.\n", n)
	return nil
}
