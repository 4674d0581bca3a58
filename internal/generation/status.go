package generation

import "time"

// Outcome tells how a run ended, or that it is still running.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Status is the per-user generation record. Version increases on every write
// and fences concurrent advances. Stale is computed on read and never stored.
type Status struct {
	UserID                    string    `json:"userId"`
	RunID                     string    `json:"runId"`
	IsGenerating              bool      `json:"isGenerating"`
	CurrentStep               Step      `json:"currentStep"`
	StepMessage               string    `json:"stepMessage"`
	EstimatedSecondsRemaining int       `json:"estimatedSecondsRemaining"`
	TotalSteps                int       `json:"totalSteps"`
	ErrorMessage              string    `json:"errorMessage,omitempty"`
	Outcome                   Outcome   `json:"outcome"`
	StartedAt                 time.Time `json:"startedAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
	Version                   int64     `json:"version"`
	ClaimToken                string    `json:"claimToken,omitempty"`
	ClaimedAt                 time.Time `json:"claimedAt"`
	Stale                     bool      `json:"stale,omitempty"`
}

// HasLiveClaim reports whether a caller is running the current stage and its
// lease has not run out.
func (s Status) HasLiveClaim(now time.Time, lease time.Duration) bool {
	return s.ClaimToken != "" && now.Sub(s.ClaimedAt) < lease
}

// IsStale reports whether a generating run has been silent for longer than threshold.
func IsStale(s Status, now time.Time, threshold time.Duration) bool {
	return s.IsGenerating && threshold > 0 && now.Sub(s.UpdatedAt) > threshold
}
