package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

type toolView struct {
	Name        string
	Category    model.ToolCategory
	Description string
}

type requiredInputs struct {
	Tool   string
	Fields []fields.Field
}

var decisionTemperature float32 = 0.1

// DecisionRouter asks the model for the next macro action and applies the loop guard.
func (d *Deps) DecisionRouter(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeDecisionRouter, in, d.decide)
}

func NewDecisionRouterNode(d *Deps) *compose.Lambda { return lambda(d.DecisionRouter) }

func (d *Deps) decide(ctx context.Context, st *model.ConversationState) string {
	decision := d.askRouter(ctx, st)

	action := model.ParseDecisionToken(decision.Token)
	if action.Kind != model.ActionEnd {
		action = model.Chat()
	}
	if tool, ok := d.Agent.FindTool(decision.Token); ok {
		action = model.UseTool(tool.Name)
		st.ChosenTool = tool.Name
		st.ToolCategory = tool.Category()
	}

	if action.IsTool() && repeatedToolDecision(st.ActionHistory, action.Tool) {
		logx.Warn().
			Str("session_id", st.SessionID).
			Str("tool", action.Tool).
			Msg("repeated tool decision, deferring to chat")
		d.Metrics.ObserveLoopGuard(action.Tool)
		action = model.Chat()
		st.ChosenTool = ""
		st.ToolCategory = ""
	}

	var requirements []string
	if action.IsTool() {
		requirements = fields.RequiredNames(toolFields(d.Agent, action.Tool))
	}
	st.NextAction = action
	st.DecisionJustification = decision.Reason
	st.DecisionContext = &model.DecisionContext{
		UserIntent:             st.UserInput,
		AvailableData:          model.MergeExtracted(nil, st.ExtractedData),
		ToolRequirements:       append([]string{}, requirements...),
		Reasoning:              decision.Reason,
		AlternativesConsidered: alternatives(d.Agent),
	}
	d.Metrics.ObserveDecision(action.String())

	logx.Verbose(d.verbose()).
		Str("session_id", st.SessionID).
		Str("decision", action.String()).
		Bool("matched", decision.Matched).
		Str("decision_justification", preview(decision.Reason, 300)).
		Msg("decision")
	return fmt.Sprintf("decided '%s' - %s", action.String(), preview(decision.Reason, previewLen))
}

// askRouter renders the decision prompt and parses the reply. Failures become
// a chat decision carrying the error as its reason.
func (d *Deps) askRouter(ctx context.Context, st *model.ConversationState) parsers.Decision {
	prompt, err := d.Prompts.Render(ctx, prompts.Decision, d.decisionVars(st))
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error rendering decision prompt")
		st.ErrorMessage = fmt.Sprintf("Decision prompt failed: %v", err)
		return parsers.Decision{Token: "chat", Reason: st.ErrorMessage}
	}
	reply, err := d.DecisionLLM.Complete(ctx, llm.Request{Prompt: prompt, Temperature: &decisionTemperature})
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error calling decision model")
		st.ErrorMessage = fmt.Sprintf("Decision failed: %v", err)
		return parsers.Decision{Token: "chat", Reason: st.ErrorMessage}
	}
	return parsers.ParseDecision(reply)
}

func (d *Deps) decisionVars(st *model.ConversationState) map[string]any {
	enabled := d.Agent.EnabledTools()
	views := make([]toolView, 0, len(enabled))
	names := make([]string, 0, len(enabled))
	var required []requiredInputs
	for _, t := range enabled {
		views = append(views, toolView{Name: t.Name, Category: t.Category(), Description: t.Description})
		names = append(names, t.Name)
		if t.Category() != model.CategoryInput {
			continue
		}
		if fs := fields.Normalize(t.InputSchema); len(fs) > 0 {
			required = append(required, requiredInputs{Tool: t.Name, Fields: fs})
		}
	}
	return map[string]any{
		"SystemPrompt":   d.Agent.Prompt(),
		"Tools":          views,
		"RequiredInputs": required,
		"Conversation":   st.RecentMessages(decisionWindow),
		"Collected":      compactJSON(st.ExtractedData),
		"QuerySpec":      compactJSON(st.QuerySpec),
		"ToolResult":     st.ToolResult,
		"Actions":        st.RecentActions(loopGuardWindow),
		"UserMessage":    st.UserInput,
		"ToolNames":      strings.Join(names, ", "),
	}
}

// NewDecisionCondition maps the router's action to the next node. Anything
// that is neither a tool nor end falls through to chat.
func NewDecisionCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		switch {
		case st.NextAction.IsTool():
			return NodeStructuredExtractor, nil
		case st.NextAction.Kind == model.ActionEnd:
			return NodeEnd, nil
		default:
			return NodeChat, nil
		}
	}
}
