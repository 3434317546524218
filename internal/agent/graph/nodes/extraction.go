package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/extract"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/tools"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// Used when a tool declares no input schema.
var (
	defaultRetrievalField = fields.Field{Name: "query", Type: fields.TypeString, Description: "What should I search for?"}
	defaultInputField     = fields.Field{Name: "tool_input", Type: fields.TypeString, Description: "Please provide the input for this operation."}
)

// selectedRuntime resolves the tool the turn is working on.
func (d *Deps) selectedRuntime(st *model.ConversationState) tools.RuntimeConfig {
	name := st.ChosenTool
	if name == "" && st.NextAction.IsTool() {
		name = st.NextAction.Tool
	}
	return tools.BuildRuntimeConfig(d.Agent, name)
}

// inputFields is the schema the extractor asks for and the validator checks.
func inputFields(rt tools.RuntimeConfig) []fields.Field {
	switch {
	case len(rt.Fields) > 0:
		return rt.Fields
	case rt.Category == model.CategoryRetrieval:
		return []fields.Field{defaultRetrievalField}
	default:
		return []fields.Field{defaultInputField}
	}
}

// StructuredExtractor pulls the chosen tool's inputs out of the conversation
// and merges them into ExtractedData without overwriting filled values.
func (d *Deps) StructuredExtractor(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeStructuredExtractor, in, func(ctx context.Context, st *model.ConversationState) string {
		rt := d.selectedRuntime(st)
		st.ChosenTool = rt.ToolName
		st.ToolCategory = rt.Category
		if rt.ToolName != "" {
			st.NextAction = model.UseTool(rt.ToolName)
		}

		if len(rt.Fields) > 0 && fields.RequiredComplete(st.ExtractedData, rt.Fields) {
			return "required fields already collected"
		}

		spec := inputFields(rt)

		prompt, err := d.Prompts.Render(ctx, prompts.Extract, map[string]any{
			"SystemPrompt": d.Agent.Prompt(),
			"Tool":         rt.ToolName,
			"Retrieval":    rt.Category == model.CategoryRetrieval,
			"Fields":       spec,
			"Collected":    compactJSON(st.ExtractedData),
			"Conversation": st.Messages,
			"UserMessage":  st.UserInput,
		})
		if err != nil {
			logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error rendering extraction prompt")
			st.ErrorMessage = fmt.Sprintf("Extraction failed: %v", err)
			return "extraction failed"
		}

		res := extract.ExtractFields(ctx, d.JSONLLM, prompt, d.Metrics)
		if res.Fallback {
			logx.Warn().Err(res.Err).Str("session_id", st.SessionID).Str("tool", rt.ToolName).Msg("extraction fell back to empty result")
		}
		before := st.ExtractedData
		st.ExtractedData = model.MergeExtracted(before, res.Value)
		added := changedKeys(before, st.ExtractedData)
		if len(added) == 0 {
			return "no new data extracted"
		}
		return "extracted " + strings.Join(added, ", ")
	})
}

func NewStructuredExtractorNode(d *Deps) *compose.Lambda { return lambda(d.StructuredExtractor) }

// ValidateInputs checks ExtractedData against the chosen tool's schema.
// Failures are explained to the user and routed to chat. QuerySpec only ever
// holds validated values of the chosen retrieval tool.
func (d *Deps) ValidateInputs(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeValidateInputs, in, func(ctx context.Context, st *model.ConversationState) string {
		rt := d.selectedRuntime(st)
		validated, errs := fields.Validate(st.ExtractedData, inputFields(rt))
		st.QuerySpec = map[string]any{}
		if len(errs) > 0 {
			st.AppendMessage(model.RoleAssistant, "I need a bit more information or corrections: "+strings.Join(errs, "; "))
			st.ValidationErrors = errs
			st.NextAction = model.Chat()
			return "validation failed: " + strings.Join(errs, ", ")
		}

		// Validated values are normalized, so they replace the raw extraction.
		for k, v := range validated {
			st.ExtractedData[k] = v
		}
		if rt.Category == model.CategoryRetrieval {
			st.QuerySpec = validated
		}
		st.ValidationErrors = []string{}
		st.ChosenTool = rt.ToolName
		st.NextAction = model.UseTool(rt.ToolName)
		return "validation passed"
	})
}

func NewValidateInputsNode(d *Deps) *compose.Lambda { return lambda(d.ValidateInputs) }

func NewValidateInputsCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		if len(st.ValidationErrors) > 0 {
			return NodeChat, nil
		}
		return NodeToolExecution, nil
	}
}

func changedKeys(before, after map[string]any) []string {
	var out []string
	for k, v := range after {
		old, ok := before[k]
		if !ok || fmt.Sprint(old) != fmt.Sprint(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
