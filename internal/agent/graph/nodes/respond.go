package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const chatFallbackReply = "Sorry, I couldn't put together a reply just now. Could you say that again?"

// Chat writes a conversational reply, steering toward the inputs a tool needs.
func (d *Deps) Chat(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeChat, in, func(ctx context.Context, st *model.ConversationState) string {
		reply := d.chatReply(ctx, st)
		st.AppendMessage(model.RoleAssistant, reply)
		st.UserInput = ""
		st.ConversationActive = true
		st.NextAction = model.WaitUserInput()
		return "generated response: " + preview(reply, previewLen)
	})
}

func NewChatNode(d *Deps) *compose.Lambda { return lambda(d.Chat) }

func (d *Deps) chatReply(ctx context.Context, st *model.ConversationState) string {
	prompt, err := d.Prompts.Render(ctx, prompts.Chat, map[string]any{
		"SystemPrompt":     d.Agent.Prompt(),
		"RequiredInputs":   strings.Join(requiredInputNames(d.Agent, st.ChosenTool), ", "),
		"Conversation":     st.RecentMessages(chatWindow),
		"Collected":        compactJSON(st.ExtractedData),
		"ValidationErrors": st.ValidationErrors,
		"Justification":    st.DecisionJustification,
		"ToolContext":      st.LastToolContext,
		"UserMessage":      st.UserInput,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error rendering chat prompt")
		st.ErrorMessage = fmt.Sprintf("Chat prompt failed: %v", err)
		return chatFallbackReply
	}
	reply, err := d.ChatLLM.Complete(ctx, llm.Request{Prompt: prompt})
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		if err == nil {
			err = fmt.Errorf("empty reply")
		}
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error calling chat model")
		st.ErrorMessage = fmt.Sprintf("Chat failed: %v", err)
		return chatFallbackReply
	}
	return reply
}

// toolSummary is the one-line digest of a tool run. It doubles as the reply
// when the model cannot produce one.
func toolSummary(res *model.ToolResult, category model.ToolCategory) string {
	switch {
	case res == nil:
		return "Tool execution failed: no result"
	case !res.Success:
		return "Tool execution failed: " + orDefault(res.Error, "Unknown error")
	case category == model.CategoryRetrieval:
		return "Search completed successfully: " + orDefault(res.Message, "Information found")
	default:
		return "Data saved successfully: " + orDefault(res.Message, "Operation completed")
	}
}

// ToolAnswer turns the tool result into a user-facing reply. It always yields
// a non-empty assistant message, including for failed tools.
func (d *Deps) ToolAnswer(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeToolAnswer, in, func(ctx context.Context, st *model.ConversationState) string {
		category := st.ToolCategory
		if category == "" {
			category = model.CategoryInput
		}
		summary := toolSummary(st.ToolResult, category)
		status := "failure"
		if st.ToolResult != nil {
			status = st.ToolResult.Status()
		}

		answer := d.toolAnswerReply(ctx, st, category, status, summary)
		st.AppendMessage(model.RoleAssistant, answer)
		st.UserInput = ""
		st.LastToolSummary = summary
		st.LastToolContext = &model.ToolContext{
			Tool:     st.ChosenTool,
			Category: category,
			Status:   status,
			Summary:  summary,
			Data:     model.MergeExtracted(nil, st.ExtractedData),
		}
		st.NextAction = model.WaitUserInput()

		logx.Verbose(d.verbose()).
			Str("session_id", st.SessionID).
			Str("tool", st.ChosenTool).
			Str("tool_summary", preview(summary, 200)).
			Msg("tool answer")
		return "answered from " + orDefault(st.ChosenTool, "tool") + " result (" + status + ")"
	})
}

func NewToolAnswerNode(d *Deps) *compose.Lambda { return lambda(d.ToolAnswer) }

func (d *Deps) toolAnswerReply(ctx context.Context, st *model.ConversationState, category model.ToolCategory, status, summary string) string {
	result := "{}"
	if st.ToolResult != nil {
		if b, err := json.MarshalIndent(st.ToolResult, "", "  "); err == nil {
			result = string(b)
		}
	}
	prompt, err := d.Prompts.Render(ctx, prompts.ToolAnswer, map[string]any{
		"SystemPrompt":    d.Agent.Prompt(),
		"DecisionContext": st.DecisionContext,
		"ToolResult":      result,
		"UserQuery":       orDefault(st.UserInput, st.LastUserMessage()),
		"Tool":            st.ChosenTool,
		"Outcome":         status,
		"Summary":         summary,
		"Retrieval":       category == model.CategoryRetrieval,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error rendering tool answer prompt")
		return summary
	}
	reply, err := d.ChatLLM.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error calling chat model for tool answer")
		return summary
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return summary
	}
	return reply
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
