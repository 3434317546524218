package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/exitcond"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const defaultInputPrompt = "Please provide your input:"

// resumable lists the nodes a suspended turn may continue at.
var resumable = map[string]bool{
	NodeWaitUserInput: true,
	NodeToolExecution: true,
}

// TurnEntry turns a request into the state the graph runs on and picks the
// node the turn enters at.
func (d *Deps) TurnEntry(ctx context.Context, req *model.TurnRequest) *model.ConversationState {
	st := req.State.Clone()
	if st == nil {
		st = model.NewConversationState("")
	}
	st.ErrorMessage = ""
	st.Path = nil
	if st.ResumeValues == nil {
		st.ResumeValues = map[string]string{}
	}

	switch {
	case !st.ConversationActive:
		st.EntryNode = NodeEnd
	case req.Entry == model.EntryResume && st.Pending != nil && resumable[st.Pending.Node]:
		if st.Pending.Key == UserInputKey {
			st.UserInput = req.Input
		} else {
			st.ResumeValues[st.Pending.Key] = req.Input
		}
		st.EntryNode = st.Pending.Node
		st.Turn++
	case req.Entry == model.EntryExit:
		// Supplied text is evaluated as the latest user message.
		if input := strings.TrimSpace(req.Input); input != "" {
			st.UserInput = input
			st.Pending = nil
			st.AppendMessage(model.RoleUser, input)
		}
		st.EntryNode = NodeExitEvaluator
		st.Turn++
	default:
		st.UserInput = req.Input
		st.Pending = nil
		st.EntryNode = NodeWaitUserInput
		st.Turn++
	}

	logx.Verbose(d.verbose()).
		Str("session_id", st.SessionID).
		Str("node", NodeTurnEntry).
		Str("entry", req.Entry.String()).
		Str("enter_at", st.EntryNode).
		Int("turn", st.Turn).
		Msg("turn started")
	return st
}

// NewTurnEntryNode creates the dispatch node fed by the graph input.
func NewTurnEntryNode(d *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, req *model.TurnRequest) (*model.ConversationState, error) {
		return d.TurnEntry(ctx, req), nil
	})
}

// NewTurnEntryCondition routes to the node chosen by TurnEntry.
func NewTurnEntryCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		switch st.EntryNode {
		case NodeEnd, NodeExitEvaluator, NodeToolExecution:
			return st.EntryNode, nil
		default:
			return NodeWaitUserInput, nil
		}
	}
}

// WaitUserInput consumes pending input, or suspends the turn when there is none.
func (d *Deps) WaitUserInput(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeWaitUserInput, in, func(ctx context.Context, st *model.ConversationState) string {
		input := strings.TrimSpace(st.UserInput)
		if input == "" {
			prompt := st.LastAssistantMessage()
			if prompt == "" {
				prompt = defaultInputPrompt
			}
			st.UserInput = ""
			st.Pending = &model.Interrupt{Node: NodeWaitUserInput, Key: UserInputKey, Prompt: prompt}
			st.NextAction = model.WaitUserInput()
			return ""
		}

		st.Pending = nil
		st.UserInput = input
		if last, ok := st.LastMessage(); !ok || last.Role != model.RoleUser || last.Content != input {
			st.AppendMessage(model.RoleUser, input)
		}
		return "received user input: '" + preview(input, 30) + "'"
	})
}

func NewWaitUserInputNode(d *Deps) *compose.Lambda { return lambda(d.WaitUserInput) }

// NewWaitUserInputCondition ends the run on suspension, otherwise continues to
// the first processing stage.
func NewWaitUserInputCondition(next string) func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		if st.Pending != nil {
			return compose.END, nil
		}
		return next, nil
	}
}

// ExitEvaluator applies the configured exit conditions.
func (d *Deps) ExitEvaluator(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeExitEvaluator, in, func(ctx context.Context, st *model.ConversationState) string {
		met := exitcond.Evaluate(d.Agent.ExitConditions, d.Agent.ExitMode(), st)
		if met || !st.ConversationActive {
			st.ConversationActive = false
			st.NextAction = model.End()
			return "exit condition met"
		}
		st.ConversationActive = true
		return "exit conditions not met"
	})
}

func NewExitEvaluatorNode(d *Deps) *compose.Lambda { return lambda(d.ExitEvaluator) }

// NewExitEvaluatorCondition goes to end, to the router when there is input to
// route, or back to waiting.
func NewExitEvaluatorCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		switch {
		case !st.ConversationActive:
			return NodeEnd, nil
		case strings.TrimSpace(st.UserInput) != "":
			return NodeDecisionRouter, nil
		default:
			return NodeWaitUserInput, nil
		}
	}
}

// End marks the conversation finished. Applying it again changes nothing.
func (d *Deps) End(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeEnd, in, func(ctx context.Context, st *model.ConversationState) string {
		st.ConversationActive = false
		st.NextAction = model.End()
		st.Pending = nil
		st.UserInput = ""
		return "conversation ended"
	})
}

func NewEndNode(d *Deps) *compose.Lambda { return lambda(d.End) }
