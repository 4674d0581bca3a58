package metricsdb

import (
	"context"
	"database/sql"
	"time"
)

const cleanupExecutionMetrics = `-- name: CleanupExecutionMetrics :execrows
DELETE FROM execution_metrics WHERE timestamp < ?
`

func (q *Queries) CleanupExecutionMetrics(ctx context.Context, timestamp time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, cleanupExecutionMetrics, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAgentSummary = `-- name: GetAgentSummary :many
SELECT agent_name, COUNT(*), SUM(prompt_tokens + completion_tokens), AVG(latency_ms), SUM(cached)
FROM execution_metrics
WHERE timestamp >= ?
GROUP BY agent_name
ORDER BY agent_name
`

type GetAgentSummaryRow struct {
	AgentName string
	Count     int64
	Sum       sql.NullFloat64
	Avg       sql.NullFloat64
	Sum_2     sql.NullFloat64
}

func (q *Queries) GetAgentSummary(ctx context.Context, timestamp time.Time) ([]GetAgentSummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, getAgentSummary, timestamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetAgentSummaryRow
	for rows.Next() {
		var i GetAgentSummaryRow
		if err := rows.Scan(
			&i.AgentName,
			&i.Count,
			&i.Sum,
			&i.Avg,
			&i.Sum_2,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDailyUsage = `-- name: GetDailyUsage :many
SELECT strftime('%Y-%m-%d', timestamp) AS day, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens)
FROM execution_metrics
WHERE timestamp >= ?
GROUP BY day
ORDER BY day DESC
`

type GetDailyUsageRow struct {
	Day   interface{}
	Count int64
	Sum   sql.NullFloat64
	Sum_2 sql.NullFloat64
}

func (q *Queries) GetDailyUsage(ctx context.Context, timestamp time.Time) ([]GetDailyUsageRow, error) {
	rows, err := q.db.QueryContext(ctx, getDailyUsage, timestamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyUsageRow
	for rows.Next() {
		var i GetDailyUsageRow
		if err := rows.Scan(
			&i.Day,
			&i.Count,
			&i.Sum,
			&i.Sum_2,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertExecutionMetric = `-- name: InsertExecutionMetric :exec
INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, cached, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertExecutionMetricParams struct {
	AgentName        string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	LatencyMs        int64
	Cached           bool
	Timestamp        time.Time
}

func (q *Queries) InsertExecutionMetric(ctx context.Context, arg InsertExecutionMetricParams) error {
	_, err := q.db.ExecContext(ctx, insertExecutionMetric,
		arg.AgentName,
		arg.Model,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.LatencyMs,
		arg.Cached,
		arg.Timestamp,
	)
	return err
}
