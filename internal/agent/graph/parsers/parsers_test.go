package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	d := ParseDecision("I think DECISION: end - user said goodbye")
	assert.True(t, d.Matched)
	assert.Equal(t, "end", d.Token)
	assert.Equal(t, "user said goodbye", d.Reason)

	d = ParseDecision("Thinking...\ndecision:   web_search -  need fresh data\nmore text")
	assert.Equal(t, "web_search", d.Token)
	assert.Equal(t, "need fresh data", d.Reason)
}

func TestParseDecisionNoMatchDefaultsToChat(t *testing.T) {
	d := ParseDecision("  I am not sure what to do  ")
	assert.False(t, d.Matched)
	assert.Equal(t, "chat", d.Token)
	assert.Equal(t, "I am not sure what to do", d.Reason)
}

func TestParseJSONObject(t *testing.T) {
	cases := map[string]string{
		"plain":  `{"name": " Alice "}`,
		"fenced": "```json\n{\"name\": \"Alice\"}\n```",
		"prose":  "Sure! Here you go: {\"name\": \"Alice\"} hope it helps",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := ParseJSONObject(in)
			require.NoError(t, err)
			assert.Equal(t, "Alice", out["name"])
		})
	}
}

func TestParseJSONObjectFailures(t *testing.T) {
	for _, in := range []string{"", "no json here", "{broken", "null", "[1,2]", strings.Repeat("x", maxContentLen+10)} {
		_, err := ParseJSONObject(in)
		assert.Error(t, err, in[:min(len(in), 20)])
	}
}
