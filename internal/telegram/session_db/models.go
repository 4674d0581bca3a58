package sessiondb

import (
	"time"
)

type WatchSession struct {
	UserID    string
	ChatID    int64
	MessageID int64
	RunID     string
	CreatedAt time.Time
}
