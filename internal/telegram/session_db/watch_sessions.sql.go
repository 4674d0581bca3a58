package sessiondb

import (
	"context"
	"time"
)

const deleteWatchSession = `-- name: DeleteWatchSession :exec
DELETE FROM watch_sessions WHERE user_id = ?
`

func (q *Queries) DeleteWatchSession(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteWatchSession, userID)
	return err
}

const deleteWatchSessionForRun = `-- name: DeleteWatchSessionForRun :exec
DELETE FROM watch_sessions WHERE user_id = ? AND run_id = ?
`

type DeleteWatchSessionForRunParams struct {
	UserID string
	RunID  string
}

func (q *Queries) DeleteWatchSessionForRun(ctx context.Context, arg DeleteWatchSessionForRunParams) error {
	_, err := q.db.ExecContext(ctx, deleteWatchSessionForRun, arg.UserID, arg.RunID)
	return err
}

const getWatchSession = `-- name: GetWatchSession :one
SELECT user_id, chat_id, message_id, run_id, created_at
FROM watch_sessions
WHERE user_id = ?
`

func (q *Queries) GetWatchSession(ctx context.Context, userID string) (WatchSession, error) {
	row := q.db.QueryRowContext(ctx, getWatchSession, userID)
	var i WatchSession
	err := row.Scan(
		&i.UserID,
		&i.ChatID,
		&i.MessageID,
		&i.RunID,
		&i.CreatedAt,
	)
	return i, err
}

const listWatchSessions = `-- name: ListWatchSessions :many
SELECT user_id, chat_id, message_id, run_id, created_at
FROM watch_sessions
ORDER BY created_at
`

func (q *Queries) ListWatchSessions(ctx context.Context) ([]WatchSession, error) {
	rows, err := q.db.QueryContext(ctx, listWatchSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WatchSession
	for rows.Next() {
		var i WatchSession
		if err := rows.Scan(
			&i.UserID,
			&i.ChatID,
			&i.MessageID,
			&i.RunID,
			&i.CreatedAt,
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

const upsertWatchSession = `-- name: UpsertWatchSession :exec
INSERT INTO watch_sessions (user_id, chat_id, message_id, run_id, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    chat_id = excluded.chat_id,
    message_id = excluded.message_id,
    run_id = excluded.run_id,
    created_at = excluded.created_at
`

type UpsertWatchSessionParams struct {
	UserID    string
	ChatID    int64
	MessageID int64
	RunID     string
	CreatedAt time.Time
}

func (q *Queries) UpsertWatchSession(ctx context.Context, arg UpsertWatchSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertWatchSession,
		arg.UserID,
		arg.ChatID,
		arg.MessageID,
		arg.RunID,
		arg.CreatedAt,
	)
	return err
}
