package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	userID := fs.String("user", "cli:default", "User the command applies to")
	store := fs.String("store", "", "Generation state backend: sqlite, file or memory (default $GENERATION_STORE)")

	var (
		input plan.Input
		limit = 10
		days  = 30
	)
	switch command {
	case "generate":
		bindInputFlags(fs, &input)
	case "history":
		fs.IntVar(&limit, "limit", limit, "Number of plans to list")
	case "metrics-cleanup":
		fs.IntVar(&days, "days", days, "Keep metric records for the last N days")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *store != "" {
		cfg.GenerationStore = strings.ToLower(*store)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)
	persister := planner.NewPersister(db.SQL)

	gen, closeGen, err := llm.NewChatGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer func() {
		if err := closeGen(); err != nil {
			log.Printf("Warning: failed to close LLM client: %v", err)
		}
	}()

	stateStore, err := app.OpenStore(cfg.GenerationStore, cfg, db.SQL)
	if err != nil {
		return err
	}

	scheduler := generation.NewTimerScheduler(cfg.Pipeline.MaxConcurrentAdvances, 0)
	defer scheduler.Stop()

	coach := app.NewCoach(cfg, llm.NewStructuredClient(gen), stateStore, persister, scheduler, metrics.NewRecorder(metricsStore))
	application := app.NewApp(coach, persister.Plans(), metricsStore, os.Stdout)

	switch command {
	case "generate":
		if n, err := coach.ResumeAll(ctx); err != nil {
			log.Printf("Warning: failed to resume interrupted runs: %v", err)
		} else if n > 0 {
			log.Printf("Resumed %d interrupted run(s)", n)
		}
		return application.Generate(ctx, *userID, input)
	case "status":
		return application.Status(ctx, *userID)
	case "result":
		return application.Result(ctx, *userID)
	case "cancel":
		return application.Cancel(ctx, *userID)
	case "history":
		return application.History(ctx, *userID, limit)
	case "metrics-cleanup":
		return application.CleanupMetrics(ctx, days)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func bindInputFlags(fs *flag.FlagSet, in *plan.Input) {
	fs.IntVar(&in.Age, "age", 0, "Age in years")
	fs.StringVar(&in.Sex, "sex", "", "male, female or other")
	fs.Float64Var(&in.Height, "height", 0, "Height in cm")
	fs.Float64Var(&in.Weight, "weight", 0, "Weight in kg")
	fs.StringVar(&in.ActivityLevel, "activity", "", "sedentary, light, moderate, active or very_active")
	fs.StringVar(&in.FitnessGoal, "goal", "", "Fitness goal, e.g. weight_loss or muscle_gain")
	fs.IntVar(&in.WorkoutDaysPerWeek, "days", 3, "Training days per week")
	fs.StringVar(&in.FitnessLevel, "level", "", "beginner, intermediate or advanced")
	fs.IntVar(&in.MealsPerDay, "meals", 0, "Meals per day")
	fs.Float64Var(&in.WeeklyBudget, "budget", 0, "Weekly grocery budget")
	fs.StringVar(&in.PreferredStore, "shop", "", "Preferred grocery store")
	fs.IntVar(&in.SessionMinutes, "minutes", 0, "Minutes per training session")
	fs.Func("equipment", "Comma-separated equipment list", listFlag(&in.Equipment))
	fs.Func("diet", "Comma-separated dietary preferences", listFlag(&in.DietaryPreferences))
	fs.Func("allergies", "Comma-separated allergies", listFlag(&in.Allergies))
}

func listFlag(dst *[]string) func(string) error {
	return func(v string) error {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*dst = append(*dst, part)
			}
		}
		return nil
	}
}

func printUsage() {
	fmt.Println("Usage: fitness-coach <command> [flags]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate           Generate a weekly training and meal plan and wait for it")
	fmt.Println("  status             Show the progress of the current generation")
	fmt.Println("  result             Print the latest finished plan")
	fmt.Println("  cancel             Cancel the current generation")
	fmt.Println("  history            List stored plans")
	fmt.Println("  metrics-cleanup    Remove old metric records")
	fmt.Println("\nCommon flags: -user <id> -store sqlite|file|memory")
}
