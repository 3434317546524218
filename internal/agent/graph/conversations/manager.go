package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// SessionsManager owns checkpoint, transcript and lock access for sessions.
type SessionsManager struct {
	checkpoints model.CheckpointStore
	transcripts model.TranscriptRepository
	locker      model.SessionLocker
	config      model.ConversationConfig
}

func NewSessionsManager(checkpoints model.CheckpointStore, transcripts model.TranscriptRepository, locker model.SessionLocker, config model.ConversationConfig) *SessionsManager {
	return &SessionsManager{
		checkpoints: checkpoints,
		transcripts: transcripts,
		locker:      locker,
		config:      config,
	}
}

// Validate reports missing collaborators. The transcript is optional.
func (m *SessionsManager) Validate() error {
	switch {
	case m == nil:
		return fmt.Errorf("sessions manager is nil")
	case m.checkpoints == nil:
		return fmt.Errorf("checkpoint store is nil")
	case m.locker == nil:
		return fmt.Errorf("session locker is nil")
	}
	return nil
}

// Lock takes the single-writer lock of a session for one turn.
func (m *SessionsManager) Lock(ctx context.Context, sessionID string) (model.UnlockFunc, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errx.WrapConfig(fmt.Errorf("session id is empty"))
	}
	return m.locker.Lock(ctx, sessionID, m.config.LockTTL)
}

// Load returns the checkpoint of a session, or a fresh state when create is
// set and none exists.
func (m *SessionsManager) Load(ctx context.Context, sessionID string, create bool) (*model.ConversationState, error) {
	st, err := m.checkpoints.Load(ctx, sessionID)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, errx.ErrSessionNotFound) && create:
		logx.Debug().Str("session_id", sessionID).Msg("Starting new session")
		return model.NewConversationState(sessionID), nil
	default:
		return nil, err
	}
}

// Commit saves after as the session checkpoint and appends the messages the
// turn added to the transcript.
func (m *SessionsManager) Commit(ctx context.Context, before, after *model.ConversationState) error {
	if err := m.checkpoints.Save(ctx, after); err != nil {
		return err
	}
	if m.transcripts == nil {
		return nil
	}
	added := newMessages(before, after)
	if len(added) == 0 {
		return nil
	}
	// The checkpoint is authoritative; a transcript failure only loses replay.
	if err := m.transcripts.AddMessages(ctx, after.SessionID, added...); err != nil {
		logx.Warn().Err(err).Str("session_id", after.SessionID).Msg("Failed to append transcript")
	}
	return nil
}

func (m *SessionsManager) Delete(ctx context.Context, sessionID string) error {
	if err := m.checkpoints.Delete(ctx, sessionID); err != nil {
		return err
	}
	if m.transcripts != nil {
		return m.transcripts.ClearHistory(ctx, sessionID)
	}
	return nil
}

func (m *SessionsManager) List(ctx context.Context) ([]string, error) {
	return m.checkpoints.List(ctx)
}

// History returns the transcript, or the checkpointed messages when no
// transcript repository is configured.
func (m *SessionsManager) History(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	if m.transcripts != nil {
		return m.transcripts.LoadHistory(ctx, sessionID)
	}
	st, err := m.checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.ConversationHistory{SessionID: sessionID, Messages: st.Messages}, nil
}

// ====================== Helper function ======================

// newMessages returns the tail of after that before did not have. Output
// translation may rewrite the last message of the turn, never older ones.
func newMessages(before, after *model.ConversationState) []model.Message {
	if after == nil {
		return nil
	}
	n := 0
	if before != nil {
		n = len(before.Messages)
	}
	if n >= len(after.Messages) {
		return nil
	}
	return append([]model.Message{}, after.Messages[n:]...)
}
