package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sessiondb "ai-fitness-coach/internal/telegram/session_db"
)

// WatchSession ties a user's generation run to the chat message that shows
// its progress.
type WatchSession struct {
	UserID    string
	ChatID    int64
	MessageID int
	RunID     string
	CreatedAt time.Time
}

// SessionRepository provides access to watch session persistence.
type SessionRepository struct {
	queries *sessiondb.Queries
	db      *sql.DB
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{
		queries: sessiondb.New(db),
		db:      db,
	}
}

// Save stores the session, replacing any previous one for the user.
func (sr *SessionRepository) Save(ctx context.Context, s WatchSession) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := sr.queries.UpsertWatchSession(ctx, sessiondb.UpsertWatchSessionParams{
		UserID:    s.UserID,
		ChatID:    s.ChatID,
		MessageID: int64(s.MessageID),
		RunID:     s.RunID,
		CreatedAt: createdAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save watch session: %w", err)
	}
	return nil
}

// Get returns the user's session, or nil.
func (sr *SessionRepository) Get(ctx context.Context, userID string) (*WatchSession, error) {
	row, err := sr.queries.GetWatchSession(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watch session: %w", err)
	}
	s := fromRow(row)
	return &s, nil
}

// List returns every stored session, oldest first.
func (sr *SessionRepository) List(ctx context.Context) ([]WatchSession, error) {
	rows, err := sr.queries.ListWatchSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch sessions: %w", err)
	}
	var out []WatchSession
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Delete removes the user's session.
func (sr *SessionRepository) Delete(ctx context.Context, userID string) error {
	return sr.queries.DeleteWatchSession(ctx, userID)
}

// DeleteRun removes the user's session only while it still follows runID.
func (sr *SessionRepository) DeleteRun(ctx context.Context, userID, runID string) error {
	return sr.queries.DeleteWatchSessionForRun(ctx, sessiondb.DeleteWatchSessionForRunParams{
		UserID: userID,
		RunID:  runID,
	})
}

func fromRow(row sessiondb.WatchSession) WatchSession {
	return WatchSession{
		UserID:    row.UserID,
		ChatID:    row.ChatID,
		MessageID: int(row.MessageID),
		RunID:     row.RunID,
		CreatedAt: row.CreatedAt,
	}
}
