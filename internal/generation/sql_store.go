package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	generationdb "ai-fitness-coach/internal/generation/generation_db"
	"ai-fitness-coach/internal/plan"
)

// SQLStore keeps generation records in the generation_runs table.
type SQLStore struct {
	queries *generationdb.Queries
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{queries: generationdb.New(db)}
}

func (s *SQLStore) getRun(ctx context.Context, userID string) (*generationdb.GenerationRun, error) {
	run, err := s.queries.GetRun(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation run: %w", err)
	}
	return &run, nil
}

func (s *SQLStore) GetStatus(ctx context.Context, userID string) (*Status, error) {
	run, err := s.getRun(ctx, userID)
	if err != nil || run == nil {
		return nil, err
	}
	st := statusFromRun(*run)
	return &st, nil
}

func (s *SQLStore) SetStatus(ctx context.Context, status Status) error {
	err := s.queries.SetRunStatus(ctx, generationdb.SetRunStatusParams{
		UserID:       status.UserID,
		RunID:        status.RunID,
		IsGenerating: status.IsGenerating,
		CurrentStep:  int64(status.CurrentStep),
		StepMessage:  status.StepMessage,
		EtaSeconds:   int64(status.EstimatedSecondsRemaining),
		TotalSteps:   int64(status.TotalSteps),
		ErrorMessage: status.ErrorMessage,
		Outcome:      string(status.Outcome),
		ClaimToken:   status.ClaimToken,
		ClaimedAt:    nullTime(status.ClaimedAt),
		StartedAt:    status.StartedAt.UTC(),
		UpdatedAt:    status.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set generation status: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteStatus(ctx context.Context, userID string) error {
	if err := s.queries.DeleteRun(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete generation run: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAccumulatedData(ctx context.Context, userID string) (*plan.Accumulated, error) {
	run, err := s.getRun(ctx, userID)
	if err != nil || run == nil || run.Accumulated == "" {
		return nil, err
	}
	var acc plan.Accumulated
	if err := json.Unmarshal([]byte(run.Accumulated), &acc); err != nil {
		return nil, fmt.Errorf("failed to decode accumulated data: %w", err)
	}
	return &acc, nil
}

func (s *SQLStore) GetInputSnapshot(ctx context.Context, userID string) (*plan.Input, error) {
	run, err := s.getRun(ctx, userID)
	if err != nil || run == nil || run.InputSnapshot == "" {
		return nil, err
	}
	var in plan.Input
	if err := json.Unmarshal([]byte(run.InputSnapshot), &in); err != nil {
		return nil, fmt.Errorf("failed to decode input snapshot: %w", err)
	}
	return &in, nil
}

func (s *SQLStore) CreateIfIdle(ctx context.Context, status Status, input plan.Input) (Status, bool, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to encode input snapshot: %w", err)
	}
	accJSON, err := json.Marshal(plan.Accumulated{InputSnapshot: input})
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to encode accumulated data: %w", err)
	}

	n, err := s.queries.CreateRunIfIdle(ctx, generationdb.CreateRunIfIdleParams{
		UserID:        status.UserID,
		RunID:         status.RunID,
		IsGenerating:  status.IsGenerating,
		CurrentStep:   int64(status.CurrentStep),
		StepMessage:   status.StepMessage,
		EtaSeconds:    int64(status.EstimatedSecondsRemaining),
		TotalSteps:    int64(status.TotalSteps),
		ErrorMessage:  status.ErrorMessage,
		Outcome:       string(status.Outcome),
		StartedAt:     status.StartedAt.UTC(),
		UpdatedAt:     status.UpdatedAt.UTC(),
		InputSnapshot: string(inputJSON),
		Accumulated:   string(accJSON),
	})
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to create generation run: %w", err)
	}

	cur, err := s.GetStatus(ctx, status.UserID)
	if err != nil {
		return Status{}, false, err
	}
	if cur == nil {
		return Status{}, false, fmt.Errorf("generation run for %s vanished after create", status.UserID)
	}
	return *cur, n > 0, nil
}

func (s *SQLStore) CompareAndSwap(ctx context.Context, userID string, expectedVersion int64, status Status, data *plan.Accumulated) (*Status, bool, error) {
	var (
		n   int64
		err error
	)
	if data == nil {
		n, err = s.queries.SwapRunStatus(ctx, generationdb.SwapRunStatusParams{
			IsGenerating:    status.IsGenerating,
			CurrentStep:     int64(status.CurrentStep),
			StepMessage:     status.StepMessage,
			EtaSeconds:      int64(status.EstimatedSecondsRemaining),
			TotalSteps:      int64(status.TotalSteps),
			ErrorMessage:    status.ErrorMessage,
			Outcome:         string(status.Outcome),
			ClaimToken:      status.ClaimToken,
			ClaimedAt:       nullTime(status.ClaimedAt),
			UpdatedAt:       status.UpdatedAt.UTC(),
			UserID:          userID,
			ExpectedVersion: expectedVersion,
			RunID:           status.RunID,
		})
	} else {
		accJSON, encErr := json.Marshal(data)
		if encErr != nil {
			return nil, false, fmt.Errorf("failed to encode accumulated data: %w", encErr)
		}
		n, err = s.queries.SwapRunStatusAndData(ctx, generationdb.SwapRunStatusAndDataParams{
			IsGenerating:    status.IsGenerating,
			CurrentStep:     int64(status.CurrentStep),
			StepMessage:     status.StepMessage,
			EtaSeconds:      int64(status.EstimatedSecondsRemaining),
			TotalSteps:      int64(status.TotalSteps),
			ErrorMessage:    status.ErrorMessage,
			Outcome:         string(status.Outcome),
			ClaimToken:      status.ClaimToken,
			ClaimedAt:       nullTime(status.ClaimedAt),
			UpdatedAt:       status.UpdatedAt.UTC(),
			Accumulated:     string(accJSON),
			UserID:          userID,
			ExpectedVersion: expectedVersion,
			RunID:           status.RunID,
		})
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to swap generation status: %w", err)
	}

	if n > 0 {
		next := status
		next.UserID = userID
		next.Version = expectedVersion + 1
		next.Stale = false
		return &next, true, nil
	}
	cur, err := s.GetStatus(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// GeneratingUsers lists users whose run is still marked as generating,
// oldest update first.
func (s *SQLStore) GeneratingUsers(ctx context.Context) ([]string, error) {
	users, err := s.queries.ListGeneratingRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list generating runs: %w", err)
	}
	return users, nil
}

func statusFromRun(run generationdb.GenerationRun) Status {
	st := Status{
		UserID:                    run.UserID,
		RunID:                     run.RunID,
		IsGenerating:              run.IsGenerating,
		CurrentStep:               Step(run.CurrentStep),
		StepMessage:               run.StepMessage,
		EstimatedSecondsRemaining: int(run.EtaSeconds),
		TotalSteps:                int(run.TotalSteps),
		ErrorMessage:              run.ErrorMessage,
		Outcome:                   Outcome(run.Outcome),
		StartedAt:                 run.StartedAt.UTC(),
		UpdatedAt:                 run.UpdatedAt.UTC(),
		Version:                   run.Version,
		ClaimToken:                run.ClaimToken,
	}
	if run.ClaimedAt.Valid {
		st.ClaimedAt = run.ClaimedAt.Time.UTC()
	}
	return st
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
