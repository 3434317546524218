package exitcond

import (
	"testing"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/stretchr/testify/assert"
)

func stateWith(msgs ...string) *model.ConversationState {
	st := model.NewConversationState("s1")
	for i, m := range msgs {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		st.AppendMessage(role, m)
	}
	return st
}

func TestPromptCondition(t *testing.T) {
	st := stateWith("Thanks, BYE for now")

	cases := []struct {
		expr string
		want bool
	}{
		{"bye|goodbye", true},
		{"goodbye|see you", false},
		{"/b[y]e\\s+FOR/", true},
		{"/(unclosed/", false},
		{"", false},
		{"|", false},
	}
	for _, tc := range cases {
		got := Match(model.ExitCondition{Type: TypePrompt, Expression: tc.expr}, st)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestPromptUsesLastUserMessage(t *testing.T) {
	st := stateWith("bye", "ok", "actually one more thing")
	assert.False(t, Match(model.ExitCondition{Type: TypePrompt, Expression: "bye"}, st))
}

func TestLogicalCondition(t *testing.T) {
	st := stateWith("hi")
	c := model.ExitCondition{Type: TypeLogical, Expression: PredicateDataComplete}
	assert.False(t, Match(c, st))

	st.ExtractedData = map[string]any{"name": "Ann"}
	assert.True(t, Match(c, st))
	assert.False(t, Match(model.ExitCondition{Type: TypeLogical, Expression: "unknown"}, st))
}

func TestToolEventCondition(t *testing.T) {
	st := stateWith("hi")
	c := model.ExitCondition{Type: TypeToolEvent, Expression: map[string]any{"tool": "sheets", "status": "success"}}
	assert.False(t, Match(c, st))

	st.ToolResult = &model.ToolResult{Type: "sheets", Success: true}
	assert.True(t, Match(c, st))

	st.ToolResult.Success = false
	assert.False(t, Match(c, st))
	assert.True(t, Match(model.ExitCondition{Type: TypeToolEvent, Expression: map[string]any{"status": "failure"}}, st))
	assert.False(t, Match(model.ExitCondition{Type: TypeToolEvent, Expression: "sheets"}, st))
}

func TestMaxTurnsCondition(t *testing.T) {
	st := stateWith("a", "b", "c")
	assert.True(t, Match(model.ExitCondition{Type: TypeMaxTurns, Expression: 3}, st))
	assert.True(t, Match(model.ExitCondition{Type: TypeMaxTurns, Expression: "2"}, st))
	assert.True(t, Match(model.ExitCondition{Type: TypeMaxTurns, Expression: float64(3)}, st))
	assert.False(t, Match(model.ExitCondition{Type: TypeMaxTurns, Expression: 4}, st))
	assert.False(t, Match(model.ExitCondition{Type: TypeMaxTurns, Expression: "many"}, st))
}

func TestEvaluateModes(t *testing.T) {
	st := stateWith("bye")
	yes := model.ExitCondition{Type: TypePrompt, Expression: "bye"}
	no := model.ExitCondition{Type: TypeMaxTurns, Expression: 10}

	assert.False(t, Evaluate(nil, "or", st))
	assert.False(t, Evaluate(nil, "and", st))
	assert.True(t, Evaluate([]model.ExitCondition{no, yes}, "", st))
	assert.False(t, Evaluate([]model.ExitCondition{no, yes}, "AND", st))
	assert.True(t, Evaluate([]model.ExitCondition{yes, yes}, "and", st))
	assert.False(t, Evaluate([]model.ExitCondition{{Type: "bogus"}}, "or", st))
}
