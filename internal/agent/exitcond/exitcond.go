// Package exitcond decides whether configured exit conditions end a conversation.
package exitcond

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const (
	TypePrompt    = "prompt"
	TypeLogical   = "logical"
	TypeToolEvent = "tool_event"
	TypeMaxTurns  = "max_turns"

	PredicateDataComplete = "is_data_complete"
)

// Evaluate combines the conditions with mode "or" (default) or "and".
// An empty list never matches.
func Evaluate(conds []model.ExitCondition, mode string, state *model.ConversationState) bool {
	if len(conds) == 0 || state == nil {
		return false
	}
	all := strings.EqualFold(strings.TrimSpace(mode), "and")
	for _, c := range conds {
		ok := Match(c, state)
		if all && !ok {
			return false
		}
		if !all && ok {
			return true
		}
	}
	return all
}

// Match evaluates a single condition. Malformed conditions are false.
func Match(c model.ExitCondition, state *model.ConversationState) bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case TypePrompt:
		expr, _ := c.Expression.(string)
		return promptMatches(expr, state)
	case TypeLogical:
		expr, _ := c.Expression.(string)
		return logicalMatches(expr, state)
	case TypeToolEvent:
		return toolEventMatches(c.Expression, state)
	case TypeMaxTurns:
		return maxTurnsMatches(c.Expression, state)
	}
	return false
}

func promptMatches(expr string, state *model.ConversationState) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}
	text := strings.ToLower(state.LastUserMessage())
	if text == "" {
		return false
	}

	if len(expr) >= 2 && strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") {
		re, err := regexp.Compile("(?i)" + expr[1:len(expr)-1])
		if err != nil {
			logx.Warn().Str("expression", expr).Err(err).Msg("invalid exit pattern")
			return false
		}
		return re.MatchString(text)
	}
	for _, phrase := range strings.Split(expr, "|") {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// is_data_complete only checks that something has been extracted.
func logicalMatches(expr string, state *model.ConversationState) bool {
	if strings.TrimSpace(expr) == PredicateDataComplete {
		return len(state.ExtractedData) > 0
	}
	return false
}

func toolEventMatches(expr any, state *model.ConversationState) bool {
	spec, ok := asStringMap(expr)
	if !ok || state.ToolResult == nil {
		return false
	}
	if tool := spec["tool"]; tool != "" && state.ToolResult.Type != tool {
		return false
	}
	if status := spec["status"]; status != "" && state.ToolResult.Success != (status == "success") {
		return false
	}
	return true
}

func maxTurnsMatches(expr any, state *model.ConversationState) bool {
	n, ok := asInt(expr)
	if !ok {
		return false
	}
	return len(state.Messages) >= n
}

func asStringMap(v any) (map[string]string, bool) {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	case map[any]any:
		for k, val := range m {
			out[fmt.Sprint(k)] = fmt.Sprint(val)
		}
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	default:
		return nil, false
	}
	return out, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
