package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/observers"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// Runner drives one turn at a time per session: it takes the session lock,
// restores the checkpoint, runs the graph and saves the result.
// It is safe for concurrent use across sessions.
type Runner struct {
	runnable compose.Runnable[*model.TurnRequest, *model.ConversationState]
	sessions *conversations.SessionsManager
	deps     *nodes.Deps
}

func NewRunner(ctx context.Context, deps *nodes.Deps, sessions *conversations.SessionsManager, conv model.ConversationConfig) (*Runner, error) {
	if err := sessions.Validate(); err != nil {
		return nil, err
	}
	runnable, err := BuildGraph(ctx, &GraphConfig{Deps: deps, MaxRunSteps: conv.MaxRunSteps})
	if err != nil {
		return nil, err
	}
	return &Runner{runnable: runnable, sessions: sessions, deps: deps}, nil
}

// Send delivers a user message. Unknown sessions are created.
func (r *Runner) Send(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	return r.turn(ctx, sessionID, model.EntrySend, text)
}

// Resume feeds value to the node the session is suspended at.
func (r *Runner) Resume(ctx context.Context, sessionID, value string) (*model.TurnResult, error) {
	return r.turn(ctx, sessionID, model.EntryResume, value)
}

// EvaluateExit runs the exit evaluator. A non-empty text is treated as the
// user message to evaluate and, if the conversation goes on, to route.
func (r *Runner) EvaluateExit(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	return r.turn(ctx, sessionID, model.EntryExit, text)
}

// State returns the checkpointed state of a session.
func (r *Runner) State(ctx context.Context, sessionID string) (*model.ConversationState, error) {
	return r.sessions.Load(ctx, sessionID, false)
}

func (r *Runner) History(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	return r.sessions.History(ctx, sessionID)
}

func (r *Runner) Sessions(ctx context.Context) ([]string, error) {
	return r.sessions.List(ctx)
}

// Reset deletes the session checkpoint and transcript.
func (r *Runner) Reset(ctx context.Context, sessionID string) error {
	unlock, err := r.sessions.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release(ctx, sessionID, unlock)
	return r.sessions.Delete(ctx, sessionID)
}

func (r *Runner) turn(ctx context.Context, sessionID string, entry model.Entry, input string) (res *model.TurnResult, err error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		r.deps.Metrics.ObserveTurn(entry.String(), outcome, time.Since(start))
	}()

	unlock, err := r.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release(ctx, sessionID, unlock)

	before, err := r.sessions.Load(ctx, sessionID, entry == model.EntrySend)
	if err != nil {
		return nil, err
	}
	if entry == model.EntryResume && before.ConversationActive && before.Pending == nil {
		return nil, errx.ErrNothingToResume
	}

	after, err := r.runnable.Invoke(ctx, &model.TurnRequest{
		State: before,
		Entry: entry,
		Input: input,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Str("entry", entry.String()).Msg("Error running conversation graph")
		return nil, fmt.Errorf("run turn: %w", err)
	}
	if after == nil {
		return nil, fmt.Errorf("run turn: graph returned no state")
	}

	if err := r.sessions.Commit(ctx, before, after); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Error saving checkpoint")
		return nil, err
	}

	res = newTurnResult(before, after)
	outcome = turnOutcome(res)
	logx.Verbose(r.deps.Agent.Verbose).
		Str("session_id", sessionID).
		Str("entry", entry.String()).
		Str("outcome", outcome).
		Strs("path", res.Path).
		Dur("took", time.Since(start)).
		Msg("turn finished")
	return res, nil
}

func newTurnResult(before, after *model.ConversationState) *model.TurnResult {
	res := &model.TurnResult{
		SessionID: after.SessionID,
		Ended:     !after.ConversationActive,
		Path:      after.Path,
		State:     after,
	}
	for i := len(before.Messages); i < len(after.Messages); i++ {
		if m := after.Messages[i]; m.Role == model.RoleAssistant {
			res.Replies = append(res.Replies, m.Content)
		}
	}
	if n := len(res.Replies); n > 0 {
		res.Reply = res.Replies[n-1]
	}
	if after.Pending != nil {
		p := *after.Pending
		res.Interrupt = &p
	}
	return res
}

func turnOutcome(res *model.TurnResult) string {
	switch {
	case res.Ended:
		return "ended"
	case res.Interrupt != nil && res.Interrupt.Node != nodes.NodeWaitUserInput:
		return "interrupted"
	default:
		return "suspended"
	}
}

func release(ctx context.Context, sessionID string, unlock model.UnlockFunc) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to release session lock")
	}
}
