// Package metrics exposes Prometheus collectors for turns, nodes, tools and model calls.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec

	decisions          *prometheus.CounterVec
	loopGuardOverrides *prometheus.CounterVec

	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	extractions *prometheus.CounterVec

	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	llmRequests *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmCost     *prometheus.CounterVec
}

// NewCollector registers all collectors on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	c := &Collector{}

	c.nodeExecutions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of state machine node executions",
		},
		[]string{"node", "status"},
	)

	c.nodeDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"node"},
	)

	c.decisions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_decisions_total",
			Help:      "Decisions taken by the router",
		},
		[]string{"action"},
	)

	c.loopGuardOverrides = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_loop_guard_overrides_total",
			Help:      "Tool decisions overridden to chat by the loop guard",
		},
		[]string{"tool"},
	)

	c.toolExecutions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool and status",
		},
		[]string{"tool", "status"},
	)

	c.toolDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	c.extractions = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structured_calls_total",
			Help:      "Structured calls by the tier that produced the result",
		},
		[]string{"purpose", "tier"},
	)

	c.turnsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by entry and outcome",
		},
		[]string{"entry", "outcome"},
	)

	c.turnDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"entry"},
	)

	c.llmRequests = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"model", "mode", "status"},
	)

	c.llmDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "mode"},
	)

	c.llmCost = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Accumulated LLM cost in USD",
		},
		[]string{"model"},
	)

	return c
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) ObserveNode(node string, panicked bool, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if panicked {
		status = "panic"
	}
	c.nodeExecutions.WithLabelValues(node, status).Inc()
	c.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (c *Collector) ObserveDecision(action string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(action).Inc()
}

func (c *Collector) ObserveLoopGuard(tool string) {
	if c == nil {
		return
	}
	c.loopGuardOverrides.WithLabelValues(tool).Inc()
}

func (c *Collector) ObserveTool(tool string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	c.toolExecutions.WithLabelValues(tool, status).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (c *Collector) ObserveStructuredCall(purpose, tier string) {
	if c == nil {
		return
	}
	c.extractions.WithLabelValues(purpose, tier).Inc()
}

func (c *Collector) ObserveTurn(entry, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(entry, outcome).Inc()
	c.turnDuration.WithLabelValues(entry).Observe(d.Seconds())
}

func (c *Collector) ObserveLLM(model, mode string, err error, d time.Duration, costUSD float64) {
	if c == nil {
		return
	}
	c.llmRequests.WithLabelValues(model, mode, statusLabel(err)).Inc()
	c.llmDuration.WithLabelValues(model, mode).Observe(d.Seconds())
	if costUSD > 0 {
		c.llmCost.WithLabelValues(model).Add(costUSD)
	}
}
