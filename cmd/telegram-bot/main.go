package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. Initialize Infrastructure
	gen, closeGen, err := llm.NewChatGenerator(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	defer closeGen()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	stateStore, err := app.OpenStore(cfg.GenerationStore, cfg, db.SQL)
	if err != nil {
		log.Fatalf("Failed to open generation store: %v", err)
	}

	metricsStore := metrics.NewStore(db.SQL)
	persister := planner.NewPersister(db.SQL)
	sessions := telegram.NewSessionRepository(db.SQL)

	api, err := telegram.NewBotAPI(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram API: %v", err)
	}

	// 3. Initialize Services
	observer := generation.MultiObserver{
		metrics.NewCollector(prometheus.DefaultRegisterer),
		metrics.NewRecorder(metricsStore),
		telegram.NewAdminAlerts(api, cfg),
	}
	scheduler := generation.NewTimerScheduler(cfg.Pipeline.MaxConcurrentAdvances, 0)
	coach := app.NewCoach(cfg, llm.NewStructuredClient(gen), stateStore, persister, scheduler, observer)

	bot := telegram.NewBot(api, cfg, coach, metricsStore, sessions)

	// 4. Pick up runs interrupted by the last shutdown
	if n, err := coach.ResumeAll(ctx); err != nil {
		log.Printf("Warning: failed to resume runs: %v", err)
	} else {
		log.Printf("Resumed %d generation run(s)", n)
	}
	if n, err := bot.ResumeWatches(ctx); err != nil {
		log.Printf("Warning: failed to resume progress messages: %v", err)
	} else {
		log.Printf("Resumed %d progress message(s)", n)
	}

	// 5. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop advancing before the database closes; interrupted runs resume on the next start.
	scheduler.Stop()
	bot.Stop()

	log.Println("Server exiting")
}
