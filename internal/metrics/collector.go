package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/shared"
)

// Collector exposes pipeline events as Prometheus metrics.
type Collector struct {
	stepTotal     *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	conflictTotal *prometheus.CounterVec
	agentTokens   *prometheus.CounterVec
	agentLatency  *prometheus.HistogramVec
	agentCached   *prometheus.CounterVec
}

// NewCollector registers the pipeline metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		stepTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitness_coach",
			Name:      "generation_steps_total",
			Help:      "Stage attempts by step and outcome.",
		}, []string{"step", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitness_coach",
			Name:      "generation_step_duration_seconds",
			Help:      "Duration of stage attempts.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		conflictTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitness_coach",
			Name:      "generation_conflicts_total",
			Help:      "Advances that lost a fencing race.",
		}, []string{"step"}),
		agentTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitness_coach",
			Name:      "llm_tokens_total",
			Help:      "Tokens used by stage generators.",
		}, []string{"agent", "kind"}),
		agentLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitness_coach",
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of stage generator model calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"agent"}),
		agentCached: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitness_coach",
			Name:      "llm_cache_hits_total",
			Help:      "Stage generator calls served from the response cache.",
		}, []string{"agent"}),
	}
}

func (c *Collector) ObserveStep(step generation.Step, outcome generation.Outcome, elapsed time.Duration) {
	c.stepTotal.WithLabelValues(step.String(), string(outcome)).Inc()
	c.stepDuration.WithLabelValues(step.String()).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveConflict(step generation.Step) {
	c.conflictTotal.WithLabelValues(step.String()).Inc()
}

func (c *Collector) RecordAgent(meta shared.AgentMeta) {
	c.agentTokens.WithLabelValues(meta.AgentName, "prompt").Add(float64(meta.Usage.PromptTokens))
	c.agentTokens.WithLabelValues(meta.AgentName, "completion").Add(float64(meta.Usage.CompletionTokens))
	c.agentLatency.WithLabelValues(meta.AgentName).Observe(meta.Latency.Seconds())
	if meta.Cached {
		c.agentCached.WithLabelValues(meta.AgentName).Inc()
	}
}

var (
	_ generation.Observer = (*Collector)(nil)
	_ generation.Observer = (*Recorder)(nil)
)
