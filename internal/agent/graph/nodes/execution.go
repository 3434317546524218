package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

// ConfirmKey is the interrupt key a confirm-gated tool waits on.
func ConfirmKey(tool string) string { return "confirm:" + tool }

// ToolExecution runs the chosen tool. Tools configured with confirm suspend the
// turn until a confirmation value has been supplied.
func (d *Deps) ToolExecution(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeToolExecution, in, func(ctx context.Context, st *model.ConversationState) string {
		rt := d.selectedRuntime(st)
		st.ChosenTool = rt.ToolName
		if rt.Category != "" {
			st.ToolCategory = rt.Category
		}

		if tool, ok := d.Agent.FindTool(rt.ToolName); ok && tool.Confirm {
			key := ConfirmKey(tool.Name)
			answer, answered := st.ResumeValues[key]
			if !answered {
				st.Pending = &model.Interrupt{
					Node:   NodeToolExecution,
					Key:    key,
					Prompt: fmt.Sprintf("Run %s with %s? (yes/no)", tool.Name, compactJSON(st.ExtractedData)),
				}
				st.NextAction = model.WaitUserInput()
				return "awaiting confirmation for " + tool.Name
			}
			delete(st.ResumeValues, key)
			st.Pending = nil
			if !affirmative(answer) {
				res := model.FailedResult(rt.Impl, "Tool execution cancelled by user", "cancelled", model.MergeExtracted(nil, st.ExtractedData))
				st.ToolResult = &res
				return "tool execution failed: cancelled"
			}
		}

		res := d.Tools.Execute(ctx, rt.Impl, st.ExtractedData, rt, d.verbose())
		st.ToolResult = &res
		if res.Success {
			return "tool executed successfully: " + preview(res.Message, previewLen)
		}
		return "tool execution failed: " + preview(res.Error, previewLen)
	})
}

func NewToolExecutionNode(d *Deps) *compose.Lambda { return lambda(d.ToolExecution) }

// NewToolExecutionCondition ends the run while a confirmation is pending.
func NewToolExecutionCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		if st.Pending != nil && st.Pending.Node == NodeToolExecution {
			return compose.END, nil
		}
		return NodeToolAnswer, nil
	}
}
