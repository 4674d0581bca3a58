package generationdb

import (
	"database/sql"
	"time"
)

type GenerationRun struct {
	UserID        string
	RunID         string
	Version       int64
	IsGenerating  bool
	CurrentStep   int64
	StepMessage   string
	EtaSeconds    int64
	TotalSteps    int64
	ErrorMessage  string
	Outcome       string
	ClaimToken    string
	ClaimedAt     sql.NullTime
	StartedAt     time.Time
	UpdatedAt     time.Time
	InputSnapshot string
	Accumulated   string
}
