package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ai-fitness-coach/internal/generation"
	metricsdb "ai-fitness-coach/internal/metrics/metrics_db"
	"ai-fitness-coach/internal/shared"
)

// ExecutionMetric records metadata for a single stage generator execution.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Cached           bool
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	queries *metricsdb.Queries
	db      *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		queries: metricsdb.New(db),
		db:      db,
	}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return s.queries.InsertExecutionMetric(ctx, metricsdb.InsertExecutionMetricParams{
		AgentName:        m.AgentName,
		Model:            m.Model,
		PromptTokens:     int64(m.PromptTokens),
		CompletionTokens: int64(m.CompletionTokens),
		LatencyMs:        m.LatencyMS,
		Cached:           m.Cached,
		Timestamp:        ts.UTC(),
	})
}

// RecordMeta records metrics directly from shared.AgentMeta. Executions that
// used no tokens and were not served from cache are skipped.
func (s *Store) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 && !meta.Cached {
		return nil
	}
	return s.Record(ctx, MapUsage(meta))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.queries.GetDailyUsage(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}

	var results []DailyUsage
	for _, r := range rows {
		u := DailyUsage{
			TotalExecution: int(r.Count),
		}

		if day, ok := r.Day.(string); ok {
			u.Date = day
		} else {
			u.Date = "Unknown"
		}

		if r.Sum.Valid {
			u.TotalPrompt = int(r.Sum.Float64)
		}
		if r.Sum_2.Valid {
			u.TotalCompletion = int(r.Sum_2.Float64)
		}

		results = append(results, u)
	}
	return results, nil
}

// AgentSummary aggregates executions of one stage generator.
type AgentSummary struct {
	AgentName    string
	Executions   int
	TotalTokens  int
	AvgLatencyMS int64
	CacheHits    int
}

// GetAgentSummary aggregates executions per agent over the last N days.
func (s *Store) GetAgentSummary(ctx context.Context, days int) ([]AgentSummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.queries.GetAgentSummary(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent summary: %w", err)
	}

	var results []AgentSummary
	for _, r := range rows {
		a := AgentSummary{AgentName: r.AgentName, Executions: int(r.Count)}
		if r.Sum.Valid {
			a.TotalTokens = int(r.Sum.Float64)
		}
		if r.Avg.Valid {
			a.AvgLatencyMS = int64(r.Avg.Float64)
		}
		if r.Sum_2.Valid {
			a.CacheHits = int(r.Sum_2.Float64)
		}
		results = append(results, a)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days and
// returns how many were removed.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	n, err := s.queries.CleanupExecutionMetrics(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return n, nil
}

// MapUsage converts agent metadata to an ExecutionMetric.
func MapUsage(meta shared.AgentMeta) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        meta.AgentName,
		Model:            meta.Usage.Model,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		LatencyMS:        meta.Latency.Milliseconds(),
		Cached:           meta.Cached,
		Timestamp:        time.Now().UTC(),
	}
}

// Recorder writes every agent execution reported by the orchestrator to the
// Store. Step events are ignored.
type Recorder struct {
	generation.NopObserver
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) RecordAgent(meta shared.AgentMeta) {
	if err := r.store.RecordMeta(context.Background(), meta); err != nil {
		log.Printf("Metrics: failed to record %s execution: %v", meta.AgentName, err)
	}
}
