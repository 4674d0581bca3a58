// Package generation drives a plan-generation run through its steps, one
// stage per Advance, with every transition fenced by the store version.
package generation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/nutrition"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/stages"
)

// WorkoutStage produces the weekly training plan.
type WorkoutStage interface {
	Generate(ctx context.Context, req stages.WorkoutRequest) (stages.WorkoutResult, error)
}

// MealStage produces the weekly meal plan.
type MealStage interface {
	Generate(ctx context.Context, req stages.MealRequest) (stages.MealResult, error)
}

// IngredientStage extracts the aggregated ingredient list from a meal plan.
type IngredientStage interface {
	Generate(ctx context.Context, req stages.ExtractionRequest) (stages.IngredientResult, error)
}

// ShoppingStage turns ingredients into a priced shopping list.
type ShoppingStage interface {
	Generate(ctx context.Context, req stages.ShoppingRequest) (stages.ShoppingResult, error)
}

// Persister stores the finished plan. It must be idempotent per runID.
type Persister interface {
	Persist(ctx context.Context, userID, runID string, in plan.PersistInputs) (string, error)
}

// Deps are the collaborators of an Orchestrator. Scheduler and Observer may
// be nil.
type Deps struct {
	Store       Store
	Workout     WorkoutStage
	Meal        MealStage
	Ingredients IngredientStage
	Shopping    ShoppingStage
	Persister   Persister
	Scheduler   Scheduler
	Observer    Observer
}

// Options tune timing and fencing.
type Options struct {
	Clock      func() time.Time
	StaleAfter time.Duration
	ClaimLease time.Duration
	// Delays is the wait before the stage run at a step is triggered.
	Delays map[Step]time.Duration
	// ETAs is the expected duration of the stage run at a step, in seconds.
	ETAs  map[Step]int
	NewID func() string
}

// OptionsFromConfig maps the pipeline tunables onto Options.
func OptionsFromConfig(p config.Pipeline) Options {
	opts := Options{
		StaleAfter: p.StaleAfter(),
		ClaimLease: p.ClaimLease(),
		Delays:     make(map[Step]time.Duration),
		ETAs:       make(map[Step]int),
	}
	for name, timing := range p.Steps {
		step, err := ParseStep(name)
		if err != nil {
			continue
		}
		opts.Delays[step] = time.Duration(timing.DelaySeconds) * time.Second
		opts.ETAs[step] = timing.ETASeconds
	}
	return opts
}

// Orchestrator is the stepwise plan-generation state machine.
type Orchestrator struct {
	store       Store
	workout     WorkoutStage
	meal        MealStage
	ingredients IngredientStage
	shopping    ShoppingStage
	persister   Persister
	scheduler   Scheduler
	observer    Observer
	opts        Options
}

// NewOrchestrator wires an Orchestrator. Zero options fall back to the
// pipeline defaults.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	defaults := OptionsFromConfig(config.DefaultPipeline())
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaults.StaleAfter
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = defaults.ClaimLease
	}
	if opts.Delays == nil {
		opts.Delays = defaults.Delays
	}
	if opts.ETAs == nil {
		opts.ETAs = defaults.ETAs
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Orchestrator{
		store:       deps.Store,
		workout:     deps.Workout,
		meal:        deps.Meal,
		ingredients: deps.Ingredients,
		shopping:    deps.Shopping,
		persister:   deps.Persister,
		scheduler:   deps.Scheduler,
		observer:    observer,
		opts:        opts,
	}
}

// StaleAfter is how long a generating run may stay silent before it is
// reported as stale.
func (o *Orchestrator) StaleAfter() time.Duration {
	return o.opts.StaleAfter
}

func (o *Orchestrator) now() time.Time {
	return o.opts.Clock().UTC()
}

// remainingETA sums the expected durations of the stages still to run from step.
func (o *Orchestrator) remainingETA(step Step) int {
	total := 0
	for s := step; s < StepComplete; s++ {
		total += o.opts.ETAs[s]
	}
	return total
}

func (o *Orchestrator) withStale(st Status) Status {
	st.Stale = IsStale(st, o.now(), o.opts.StaleAfter)
	return st
}

// Start begins a run for userID unless one is already generating, in which
// case the in-flight status is returned unchanged.
func (o *Orchestrator) Start(ctx context.Context, userID string, input plan.Input) (Status, error) {
	if userID == "" {
		return Status{}, &plan.InputError{Fields: []string{"userId"}}
	}
	input = input.WithDefaults()
	if err := input.Validate(); err != nil {
		return Status{}, err
	}

	now := o.now()
	status := Status{
		UserID:                    userID,
		RunID:                     o.opts.NewID(),
		IsGenerating:              true,
		CurrentStep:               StepInitialize,
		StepMessage:               StepInitialize.Message(),
		EstimatedSecondsRemaining: o.remainingETA(StepInitialize),
		TotalSteps:                TotalSteps,
		Outcome:                   OutcomeRunning,
		StartedAt:                 now,
		UpdatedAt:                 now,
	}

	st, created, err := o.store.CreateIfIdle(ctx, status, input)
	if err != nil {
		return Status{}, persistenceErr("create generation run", err)
	}
	if !created {
		log.Printf("Generation: %s already has run %s at %s", userID, st.RunID, st.CurrentStep)
		return o.withStale(st), nil
	}

	log.Printf("Generation: started run %s for %s", st.RunID, userID)
	o.schedule(userID, StepInitialize)
	return st, nil
}

// Resume re-arms the scheduler for a run left generating, for example after
// a restart. It reports whether anything was scheduled.
func (o *Orchestrator) Resume(ctx context.Context, userID string) (bool, error) {
	st, err := o.store.GetStatus(ctx, userID)
	if err != nil {
		return false, persistenceErr("read generation status", err)
	}
	if st == nil || !st.IsGenerating || st.CurrentStep == StepComplete || o.scheduler == nil {
		return false, nil
	}
	o.scheduler.Schedule(userID, st.CurrentStep, 0)
	return true, nil
}

// RunLister is implemented by stores that can enumerate generating runs.
type RunLister interface {
	GeneratingUsers(ctx context.Context) ([]string, error)
}

// ResumeAll re-arms every generating run the store knows about. It returns
// how many runs were scheduled.
func (o *Orchestrator) ResumeAll(ctx context.Context) (int, error) {
	lister, ok := o.store.(RunLister)
	if !ok || o.scheduler == nil {
		return 0, nil
	}
	users, err := lister.GeneratingUsers(ctx)
	if err != nil {
		return 0, persistenceErr("list generating runs", err)
	}
	n := 0
	for _, userID := range users {
		resumed, err := o.Resume(ctx, userID)
		if err != nil {
			log.Printf("Generation: failed to resume %s: %v", userID, err)
			continue
		}
		if resumed {
			n++
		}
	}
	return n, nil
}

func (o *Orchestrator) schedule(userID string, step Step) {
	if o.scheduler == nil {
		return
	}
	o.scheduler.Schedule(userID, step, o.opts.Delays[step])
}

// Advance runs the stage for the current step and commits its output with
// the next step. A run that failed is re-armed and retries the same stage.
func (o *Orchestrator) Advance(ctx context.Context, userID string) (Status, error) {
	cur, err := o.store.GetStatus(ctx, userID)
	if err != nil {
		return Status{}, persistenceErr("read generation status", err)
	}
	if cur == nil || cur.Outcome == OutcomeCancelled {
		return Status{}, ErrNoActiveGeneration
	}
	if cur.CurrentStep == StepComplete {
		return o.withStale(*cur), nil
	}

	now := o.now()
	step := cur.CurrentStep
	if cur.IsGenerating && cur.HasLiveClaim(now, o.opts.ClaimLease) {
		o.observer.ObserveConflict(step)
		return o.withStale(*cur), nil
	}
	if !cur.IsGenerating && cur.Outcome != OutcomeFailed {
		return Status{}, ErrNoActiveGeneration
	}

	claim := *cur
	claim.IsGenerating = true
	claim.Outcome = OutcomeRunning
	claim.ErrorMessage = ""
	claim.StepMessage = step.Message()
	claim.ClaimToken = o.opts.NewID()
	claim.ClaimedAt = now
	claim.UpdatedAt = now

	claimed, ok, err := o.store.CompareAndSwap(ctx, userID, cur.Version, claim, nil)
	if err != nil {
		return Status{}, persistenceErr("claim generation step", err)
	}
	if !ok {
		o.observer.ObserveConflict(step)
		if claimed == nil {
			return Status{}, ErrNoActiveGeneration
		}
		return o.withStale(*claimed), nil
	}
	if cur.Outcome == OutcomeFailed {
		log.Printf("Generation: retrying %s for %s", step, userID)
	}

	data, err := o.store.GetAccumulatedData(ctx, userID)
	if err != nil {
		return o.fail(ctx, *claimed, persistenceErr("read accumulated data", err))
	}
	if data == nil {
		return o.fail(ctx, *claimed, fmt.Errorf("%w: no accumulated data", plan.ErrIncompleteAccumulator))
	}

	began := time.Now()
	err = o.runStage(ctx, *claimed, data)
	elapsed := time.Since(began)
	if err != nil {
		o.observer.ObserveStep(step, OutcomeFailed, elapsed)
		return o.fail(ctx, *claimed, err)
	}
	o.observer.ObserveStep(step, OutcomeCompleted, elapsed)

	next := step.Next()
	commit := *claimed
	commit.CurrentStep = next
	commit.StepMessage = next.Message()
	commit.EstimatedSecondsRemaining = o.remainingETA(next)
	commit.ClaimToken = ""
	commit.ClaimedAt = time.Time{}
	commit.UpdatedAt = o.now()
	if next == StepComplete {
		commit.IsGenerating = false
		commit.Outcome = OutcomeCompleted
	}

	committed, ok, err := o.store.CompareAndSwap(context.WithoutCancel(ctx), userID, claimed.Version, commit, data)
	if err != nil {
		return *claimed, persistenceErr("commit generation step", err)
	}
	if !ok {
		o.observer.ObserveConflict(step)
		log.Printf("Generation: discarding %s output for %s, run changed underneath", step, userID)
		if committed == nil || committed.RunID != claimed.RunID {
			return Status{}, ErrNoActiveGeneration
		}
		return o.withStale(*committed), nil
	}

	log.Printf("Generation: %s advanced %s -> %s", userID, step, next)
	if next != StepComplete {
		o.schedule(userID, next)
	}
	return *committed, nil
}

// fail records cause on the run, leaving the step where it is, and returns it.
func (o *Orchestrator) fail(ctx context.Context, claimed Status, cause error) (Status, error) {
	failed := claimed
	failed.IsGenerating = false
	failed.Outcome = OutcomeFailed
	failed.ErrorMessage = cause.Error()
	failed.ClaimToken = ""
	failed.ClaimedAt = time.Time{}
	failed.UpdatedAt = o.now()

	log.Printf("Generation: %s failed at %s: %v", claimed.UserID, claimed.CurrentStep, cause)

	st, ok, err := o.store.CompareAndSwap(context.WithoutCancel(ctx), claimed.UserID, claimed.Version, failed, nil)
	if err != nil {
		log.Printf("Generation: failed to record failure for %s: %v", claimed.UserID, err)
		return claimed, cause
	}
	if !ok {
		if st == nil {
			return claimed, cause
		}
		return o.withStale(*st), cause
	}
	return *st, cause
}

// runStage merges the output of the stage at claimed.CurrentStep into data.
func (o *Orchestrator) runStage(ctx context.Context, claimed Status, data *plan.Accumulated) error {
	switch claimed.CurrentStep {
	case StepInitialize:
		targets, err := nutrition.Calculate(data.InputSnapshot.Profile())
		if err != nil {
			return fmt.Errorf("failed to calculate nutrition targets: %w", err)
		}
		data.NutritionData = &targets

	case StepNutritionCalculation:
		in, err := data.WorkoutInputs()
		if err != nil {
			return err
		}
		res, err := o.workout.Generate(ctx, stages.WorkoutRequest{Input: in.Input, Nutrition: in.Nutrition})
		o.recordAgent(res.Meta)
		if err != nil {
			return err
		}
		data.WorkoutPlan = &res.Plan

	case StepWorkoutPlan:
		in, err := data.MealInputs()
		if err != nil {
			return err
		}
		res, err := o.meal.Generate(ctx, stages.MealRequest{Input: in.Input, Nutrition: in.Nutrition, Workout: in.Workout})
		o.recordAgent(res.Meta)
		if err != nil {
			return err
		}
		data.MealPlan = &res.Plan

	case StepMealPlan:
		in, err := data.ExtractionInputs()
		if err != nil {
			return err
		}
		if len(in.MealPlan.StructuredIngredients) > 0 {
			merged, err := stages.MergeIngredients(in.MealPlan.StructuredIngredients)
			if err == nil {
				data.Ingredients = merged
				return nil
			}
			log.Printf("Generation: structured ingredients for %s unusable, extracting: %v", claimed.UserID, err)
		}
		res, err := o.ingredients.Generate(ctx, stages.ExtractionRequest{MealPlan: in.MealPlan})
		o.recordAgent(res.Meta)
		if err != nil {
			return err
		}
		data.Ingredients = res.Ingredients

	case StepExtractIngredients:
		in, err := data.ShoppingInputs()
		if err != nil {
			return err
		}
		res, err := o.shopping.Generate(ctx, stages.ShoppingRequest{Ingredients: in.Ingredients, Budget: in.Budget, Store: in.Store})
		o.recordAgent(res.Meta)
		if err != nil {
			return err
		}
		data.ShoppingList = &res.List

	case StepShoppingList:
		in, err := data.PersistInputs()
		if err != nil {
			return err
		}
		planID, err := o.persister.Persist(ctx, claimed.UserID, claimed.RunID, in)
		if err != nil {
			return persistenceErr("persist plan", err)
		}
		data.PlanID = planID

	default:
		return fmt.Errorf("cannot advance from %s", claimed.CurrentStep)
	}
	return nil
}

func (o *Orchestrator) recordAgent(meta shared.AgentMeta) {
	if meta.AgentName == "" {
		return
	}
	o.observer.RecordAgent(meta)
}

// GetStatus returns the run status for userID, or nil when there is none.
// Stale is set on the returned copy only.
func (o *Orchestrator) GetStatus(ctx context.Context, userID string) (*Status, error) {
	st, err := o.store.GetStatus(ctx, userID)
	if err != nil {
		return nil, persistenceErr("read generation status", err)
	}
	if st == nil {
		return nil, nil
	}
	out := o.withStale(*st)
	return &out, nil
}

// Cancel stops the run for userID. It never fails: when the record cannot be
// deleted it is marked cancelled instead. It returns false only when there
// was no record to cancel.
func (o *Orchestrator) Cancel(ctx context.Context, userID string) bool {
	if o.scheduler != nil {
		o.scheduler.Cancel(userID)
	}

	st, err := o.store.GetStatus(ctx, userID)
	if err != nil {
		log.Printf("Generation: failed to read status for %s before cancel: %v", userID, err)
	} else if st == nil {
		return false
	}

	err = o.store.DeleteStatus(ctx, userID)
	if err == nil {
		log.Printf("Generation: cancelled run for %s", userID)
		return true
	}
	log.Printf("Generation: failed to delete run for %s, marking cancelled: %v", userID, err)

	now := o.now()
	cancelled := Status{UserID: userID, StartedAt: now, TotalSteps: TotalSteps}
	if st != nil {
		cancelled = *st
	}
	cancelled.IsGenerating = false
	cancelled.Outcome = OutcomeCancelled
	cancelled.ErrorMessage = "Generation was cancelled"
	cancelled.StepMessage = "Cancelled"
	cancelled.EstimatedSecondsRemaining = 0
	cancelled.ClaimToken = ""
	cancelled.ClaimedAt = time.Time{}
	cancelled.UpdatedAt = now
	if err := o.store.SetStatus(ctx, cancelled); err != nil {
		log.Printf("Generation: failed to mark run for %s cancelled: %v", userID, err)
	}
	return true
}

// GetResult returns the accumulated plan of a completed run, or nil.
func (o *Orchestrator) GetResult(ctx context.Context, userID string) (*plan.Accumulated, error) {
	st, err := o.store.GetStatus(ctx, userID)
	if err != nil {
		return nil, persistenceErr("read generation status", err)
	}
	if st == nil || st.IsGenerating || st.Outcome != OutcomeCompleted || st.CurrentStep != StepComplete {
		return nil, nil
	}
	data, err := o.store.GetAccumulatedData(ctx, userID)
	if err != nil {
		return nil, persistenceErr("read accumulated data", err)
	}
	return data, nil
}

var (
	_ Advancer  = (*Orchestrator)(nil)
	_ Scheduler = (*TimerScheduler)(nil)
	_ Store     = (*MemoryStore)(nil)
	_ Store     = (*SQLStore)(nil)
)

