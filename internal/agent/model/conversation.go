package model

import (
	"context"
	"time"
)

// CheckpointStore persists full state snapshots keyed by session id.
type CheckpointStore interface {
	// Load returns errx.ErrSessionNotFound when no snapshot exists.
	Load(ctx context.Context, sessionID string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

type TranscriptRepository interface {
	// AddMessages appends messages to the session transcript
	AddMessages(ctx context.Context, sessionID string, messages ...Message) error

	// LoadHistory retrieves the transcript for a session
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes the transcript for a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages in the transcript
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents a loaded transcript.
type ConversationHistory struct {
	SessionID string
	Messages  []Message
}

// UnlockFunc releases a session lock.
type UnlockFunc func(ctx context.Context) error

// SessionLocker serializes turns of one session.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (UnlockFunc, error)
}
