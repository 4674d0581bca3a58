package generationdb

import (
	"context"
	"database/sql"
	"time"
)

const createRunIfIdle = `-- name: CreateRunIfIdle :execrows
INSERT INTO generation_runs (
    user_id, run_id, version, is_generating, current_step, step_message, eta_seconds, total_steps,
    error_message, outcome, claim_token, claimed_at, started_at, updated_at, input_snapshot, accumulated
) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, '', NULL, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    run_id = excluded.run_id,
    version = generation_runs.version + 1,
    is_generating = excluded.is_generating,
    current_step = excluded.current_step,
    step_message = excluded.step_message,
    eta_seconds = excluded.eta_seconds,
    total_steps = excluded.total_steps,
    error_message = excluded.error_message,
    outcome = excluded.outcome,
    claim_token = '',
    claimed_at = NULL,
    started_at = excluded.started_at,
    updated_at = excluded.updated_at,
    input_snapshot = excluded.input_snapshot,
    accumulated = excluded.accumulated
WHERE generation_runs.is_generating = 0
`

type CreateRunIfIdleParams struct {
	UserID        string
	RunID         string
	IsGenerating  bool
	CurrentStep   int64
	StepMessage   string
	EtaSeconds    int64
	TotalSteps    int64
	ErrorMessage  string
	Outcome       string
	StartedAt     time.Time
	UpdatedAt     time.Time
	InputSnapshot string
	Accumulated   string
}

func (q *Queries) CreateRunIfIdle(ctx context.Context, arg CreateRunIfIdleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createRunIfIdle,
		arg.UserID,
		arg.RunID,
		arg.IsGenerating,
		arg.CurrentStep,
		arg.StepMessage,
		arg.EtaSeconds,
		arg.TotalSteps,
		arg.ErrorMessage,
		arg.Outcome,
		arg.StartedAt,
		arg.UpdatedAt,
		arg.InputSnapshot,
		arg.Accumulated,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRun = `-- name: DeleteRun :exec
DELETE FROM generation_runs WHERE user_id = ?
`

func (q *Queries) DeleteRun(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteRun, userID)
	return err
}

const getRun = `-- name: GetRun :one
SELECT user_id, run_id, version, is_generating, current_step, step_message, eta_seconds, total_steps,
       error_message, outcome, claim_token, claimed_at, started_at, updated_at, input_snapshot, accumulated
FROM generation_runs
WHERE user_id = ?
`

func (q *Queries) GetRun(ctx context.Context, userID string) (GenerationRun, error) {
	row := q.db.QueryRowContext(ctx, getRun, userID)
	var i GenerationRun
	err := row.Scan(
		&i.UserID,
		&i.RunID,
		&i.Version,
		&i.IsGenerating,
		&i.CurrentStep,
		&i.StepMessage,
		&i.EtaSeconds,
		&i.TotalSteps,
		&i.ErrorMessage,
		&i.Outcome,
		&i.ClaimToken,
		&i.ClaimedAt,
		&i.StartedAt,
		&i.UpdatedAt,
		&i.InputSnapshot,
		&i.Accumulated,
	)
	return i, err
}

const listGeneratingRuns = `-- name: ListGeneratingRuns :many
SELECT user_id FROM generation_runs WHERE is_generating = 1 ORDER BY updated_at
`

func (q *Queries) ListGeneratingRuns(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listGeneratingRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		items = append(items, userID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setRunStatus = `-- name: SetRunStatus :exec
INSERT INTO generation_runs (
    user_id, run_id, version, is_generating, current_step, step_message, eta_seconds, total_steps,
    error_message, outcome, claim_token, claimed_at, started_at, updated_at
) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    run_id = excluded.run_id,
    version = generation_runs.version + 1,
    is_generating = excluded.is_generating,
    current_step = excluded.current_step,
    step_message = excluded.step_message,
    eta_seconds = excluded.eta_seconds,
    total_steps = excluded.total_steps,
    error_message = excluded.error_message,
    outcome = excluded.outcome,
    claim_token = excluded.claim_token,
    claimed_at = excluded.claimed_at,
    started_at = excluded.started_at,
    updated_at = excluded.updated_at
`

type SetRunStatusParams struct {
	UserID       string
	RunID        string
	IsGenerating bool
	CurrentStep  int64
	StepMessage  string
	EtaSeconds   int64
	TotalSteps   int64
	ErrorMessage string
	Outcome      string
	ClaimToken   string
	ClaimedAt    sql.NullTime
	StartedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) SetRunStatus(ctx context.Context, arg SetRunStatusParams) error {
	_, err := q.db.ExecContext(ctx, setRunStatus,
		arg.UserID,
		arg.RunID,
		arg.IsGenerating,
		arg.CurrentStep,
		arg.StepMessage,
		arg.EtaSeconds,
		arg.TotalSteps,
		arg.ErrorMessage,
		arg.Outcome,
		arg.ClaimToken,
		arg.ClaimedAt,
		arg.StartedAt,
		arg.UpdatedAt,
	)
	return err
}

const swapRunStatus = `-- name: SwapRunStatus :execrows
UPDATE generation_runs SET
    version = version + 1,
    is_generating = ?,
    current_step = ?,
    step_message = ?,
    eta_seconds = ?,
    total_steps = ?,
    error_message = ?,
    outcome = ?,
    claim_token = ?,
    claimed_at = ?,
    updated_at = ?
WHERE user_id = ? AND version = ? AND run_id = ?
`

type SwapRunStatusParams struct {
	IsGenerating    bool
	CurrentStep     int64
	StepMessage     string
	EtaSeconds      int64
	TotalSteps      int64
	ErrorMessage    string
	Outcome         string
	ClaimToken      string
	ClaimedAt       sql.NullTime
	UpdatedAt       time.Time
	UserID          string
	ExpectedVersion int64
	RunID           string
}

func (q *Queries) SwapRunStatus(ctx context.Context, arg SwapRunStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, swapRunStatus,
		arg.IsGenerating,
		arg.CurrentStep,
		arg.StepMessage,
		arg.EtaSeconds,
		arg.TotalSteps,
		arg.ErrorMessage,
		arg.Outcome,
		arg.ClaimToken,
		arg.ClaimedAt,
		arg.UpdatedAt,
		arg.UserID,
		arg.ExpectedVersion,
		arg.RunID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const swapRunStatusAndData = `-- name: SwapRunStatusAndData :execrows
UPDATE generation_runs SET
    version = version + 1,
    is_generating = ?,
    current_step = ?,
    step_message = ?,
    eta_seconds = ?,
    total_steps = ?,
    error_message = ?,
    outcome = ?,
    claim_token = ?,
    claimed_at = ?,
    updated_at = ?,
    accumulated = ?
WHERE user_id = ? AND version = ? AND run_id = ?
`

type SwapRunStatusAndDataParams struct {
	IsGenerating    bool
	CurrentStep     int64
	StepMessage     string
	EtaSeconds      int64
	TotalSteps      int64
	ErrorMessage    string
	Outcome         string
	ClaimToken      string
	ClaimedAt       sql.NullTime
	UpdatedAt       time.Time
	Accumulated     string
	UserID          string
	ExpectedVersion int64
	RunID           string
}

func (q *Queries) SwapRunStatusAndData(ctx context.Context, arg SwapRunStatusAndDataParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, swapRunStatusAndData,
		arg.IsGenerating,
		arg.CurrentStep,
		arg.StepMessage,
		arg.EtaSeconds,
		arg.TotalSteps,
		arg.ErrorMessage,
		arg.Outcome,
		arg.ClaimToken,
		arg.ClaimedAt,
		arg.UpdatedAt,
		arg.Accumulated,
		arg.UserID,
		arg.ExpectedVersion,
		arg.RunID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
