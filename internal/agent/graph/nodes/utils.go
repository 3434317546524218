package nodes

import (
	"encoding/json"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

const (
	// decisionWindow is how many trailing messages the router sees.
	decisionWindow = 5
	// chatWindow is how many trailing messages a reply prompt sees.
	chatWindow = 20
	// loopGuardWindow is how many trailing action records the loop guard inspects.
	loopGuardWindow = 3
	previewLen      = 50
)

// repeatedToolDecision reports whether the router keeps choosing tool: among
// the last loopGuardWindow records, at least two come from the router and all
// of those mention tool. Containment, not equality, is intended.
func repeatedToolDecision(history []model.ActionRecord, tool string) bool {
	if tool == "" {
		return false
	}
	recent := history
	if len(recent) > loopGuardWindow {
		recent = recent[len(recent)-loopGuardWindow:]
	}
	var decisions []string
	for _, a := range recent {
		if a.Node == NodeDecisionRouter {
			decisions = append(decisions, a.Outcome)
		}
	}
	if len(decisions) < 2 {
		return false
	}
	for _, outcome := range decisions {
		if !strings.Contains(outcome, tool) {
			return false
		}
	}
	return true
}

// alternatives lists every action the router could have picked.
func alternatives(cfg *model.AgentConfig) []string {
	out := []string{"chat", "end"}
	for _, t := range cfg.EnabledTools() {
		out = append(out, t.Name)
	}
	return out
}

func toolFields(cfg *model.AgentConfig, name string) []fields.Field {
	t, ok := cfg.FindTool(name)
	if !ok {
		return nil
	}
	return fields.Normalize(t.InputSchema)
}

// requiredInputNames returns required field names of the chosen tool, or of
// every input tool when none is chosen. Order is stable and duplicates are dropped.
func requiredInputNames(cfg *model.AgentConfig, chosen string) []string {
	if chosen != "" {
		if names := fields.RequiredNames(toolFields(cfg, chosen)); len(names) > 0 {
			return names
		}
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range cfg.EnabledTools() {
		if t.Category() != model.CategoryInput {
			continue
		}
		for _, n := range fields.RequiredNames(fields.Normalize(t.InputSchema)) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// compactJSON renders v for prompts; empty maps render as "".
func compactJSON(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// affirmative reads a yes/no answer; anything not clearly positive is a no.
func affirmative(v string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(v), ".!")) {
	case "y", "yes", "ok", "okay", "sure", "confirm", "confirmed", "true", "1":
		return true
	}
	return false
}
