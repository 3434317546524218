package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/tools"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// Node names. They double as action-history labels and interrupt targets.
const (
	NodeTurnEntry           = "turn_entry"
	NodeWaitUserInput       = "wait_user_input"
	NodeInputTranslation    = "input_translation"
	NodeDecisionRouter      = "decision_router"
	NodeChat                = "chat"
	NodeStructuredExtractor = "structured_extractor"
	NodeValidateInputs      = "validate_inputs"
	NodeToolExecution       = "tool_execution"
	NodeToolAnswer          = "tool_answer"
	NodeOutputTranslation   = "output_translation"
	NodeExitEvaluator       = "exit_evaluator"
	NodeEnd                 = "end"
)

// UserInputKey is the interrupt key of wait_user_input.
const UserInputKey = "user_input"

// Deps is everything the nodes need. It is built once and shared read-only by
// every session.
type Deps struct {
	Agent *model.AgentConfig
	// DecisionLLM routes turns. ChatLLM writes replies and translations.
	// JSONLLM serves structured calls.
	DecisionLLM llm.Client
	ChatLLM     llm.Client
	JSONLLM     llm.Client
	Prompts     prompts.Bundle
	Tools       *tools.Registry
	Metrics     *metrics.Collector
}

// Validate reports missing collaborators.
func (d *Deps) Validate() error {
	switch {
	case d == nil:
		return fmt.Errorf("node deps are nil")
	case d.Agent == nil:
		return fmt.Errorf("agent config is nil")
	case d.DecisionLLM == nil || d.ChatLLM == nil || d.JSONLLM == nil:
		return fmt.Errorf("llm clients are not properly initialized")
	case d.Prompts == nil:
		return fmt.Errorf("prompt bundle is nil")
	case d.Tools == nil:
		return fmt.Errorf("tool registry is nil")
	}
	return nil
}

func (d *Deps) verbose() bool { return d.Agent != nil && d.Agent.Verbose }

// step works on a private copy of the state and returns the action-history
// outcome. An empty outcome records nothing.
type step func(ctx context.Context, st *model.ConversationState) string

// run executes fn over a clone of in. A panic leaves the input untouched apart
// from ErrorMessage and the recorded outcome.
func (d *Deps) run(ctx context.Context, name string, in *model.ConversationState, fn step) *model.ConversationState {
	start := time.Now()
	st := in.Clone()
	outcome, panicked := safeStep(ctx, st, fn)
	if panicked {
		st = in.Clone()
		st.ErrorMessage = fmt.Sprintf("%s failed: %s", name, outcome)
		outcome = "error: " + outcome
	}
	if outcome != "" {
		st.RecordAction(name, outcome)
	}
	d.Metrics.ObserveNode(name, panicked, time.Since(start))

	ev := logx.Verbose(d.verbose())
	if panicked {
		ev = logx.Error()
	}
	ev.Str("session_id", st.SessionID).
		Str("node", name).
		Str("next_action", st.NextAction.String()).
		Str("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("node executed")
	return st
}

func safeStep(ctx context.Context, st *model.ConversationState, fn step) (outcome string, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			outcome, panicked = fmt.Sprint(r), true
		}
	}()
	return fn(ctx, st), false
}

func lambda(fn func(context.Context, *model.ConversationState) *model.ConversationState) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.ConversationState) (*model.ConversationState, error) {
		return fn(ctx, in), nil
	})
}

// NewTurnEntryPreHandler seeds the per-invocation trace from the request.
func NewTurnEntryPreHandler() func(context.Context, *model.TurnRequest, *model.TurnTrace) (*model.TurnRequest, error) {
	return func(ctx context.Context, in *model.TurnRequest, s *model.TurnTrace) (*model.TurnRequest, error) {
		if in == nil {
			return nil, fmt.Errorf("turn request is nil")
		}
		if in.State != nil {
			s.SessionID = in.State.SessionID
			if in.Entry == model.EntryResume && in.State.Pending != nil {
				s.ResumeNode = in.State.Pending.Node
			}
		}
		s.Entry = in.Entry
		s.Path = s.Path[:0]
		return in, nil
	}
}

// NewTracePostHandler appends the node to the trace and mirrors the path onto
// the outgoing state so the runner can report it.
func NewTracePostHandler(node string) func(context.Context, *model.ConversationState, *model.TurnTrace) (*model.ConversationState, error) {
	return func(ctx context.Context, out *model.ConversationState, s *model.TurnTrace) (*model.ConversationState, error) {
		s.Path = append(s.Path, node)
		if out != nil {
			out.Path = append([]string(nil), s.Path...)
		}
		return out, nil
	}
}
