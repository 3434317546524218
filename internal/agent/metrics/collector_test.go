package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("dialogue", reg)

	c.ObserveNode("chat", false, time.Millisecond)
	c.ObserveNode("chat", true, time.Millisecond)
	c.ObserveDecision("chat")
	c.ObserveLoopGuard("web_search")
	c.ObserveTool("sheets", true, time.Second)
	c.ObserveTool("sheets", false, time.Second)
	c.ObserveStructuredCall("extract", "fallback")
	c.ObserveTurn("send", "suspended", time.Second)
	c.ObserveLLM("gemini-2.5-flash", "json", errors.New("x"), time.Second, 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeExecutions.WithLabelValues("chat", "panic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loopGuardOverrides.WithLabelValues("web_search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolExecutions.WithLabelValues("sheets", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractions.WithLabelValues("extract", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequests.WithLabelValues("gemini-2.5-flash", "json", "error")))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.llmCost.WithLabelValues("gemini-2.5-flash")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveNode("x", false, 0)
		c.ObserveDecision("x")
		c.ObserveLoopGuard("x")
		c.ObserveTool("x", true, 0)
		c.ObserveStructuredCall("x", "y")
		c.ObserveTurn("x", "y", 0)
		c.ObserveLLM("m", "plain", nil, 0, 0)
	})
}
