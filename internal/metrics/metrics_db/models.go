package metricsdb

import (
	"time"
)

type ExecutionMetric struct {
	ID               int64
	AgentName        string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	LatencyMs        int64
	Cached           bool
	Timestamp        time.Time
}
