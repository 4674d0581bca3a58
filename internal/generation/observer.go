package generation

import (
	"time"

	"ai-fitness-coach/internal/shared"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveStep is called once per stage attempt with its outcome.
	ObserveStep(step Step, outcome Outcome, elapsed time.Duration)
	// ObserveConflict is called when an advance loses a fencing race.
	ObserveConflict(step Step)
	// RecordAgent is called for every stage generator execution.
	RecordAgent(meta shared.AgentMeta)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ObserveStep(Step, Outcome, time.Duration) {}
func (NopObserver) ObserveConflict(Step)                     {}
func (NopObserver) RecordAgent(shared.AgentMeta)             {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) ObserveStep(step Step, outcome Outcome, elapsed time.Duration) {
	for _, o := range m {
		o.ObserveStep(step, outcome, elapsed)
	}
}

func (m MultiObserver) ObserveConflict(step Step) {
	for _, o := range m {
		o.ObserveConflict(step)
	}
}

func (m MultiObserver) RecordAgent(meta shared.AgentMeta) {
	for _, o := range m {
		o.RecordAgent(meta)
	}
}
