package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
)

// MemoryCheckpointStore keeps deep copies of snapshots in process.
// Safe for concurrent use.
type MemoryCheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*model.ConversationState
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{data: map[string]*model.ConversationState{}}
}

func (s *MemoryCheckpointStore) Load(_ context.Context, sessionID string) (*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[sessionID]
	if !ok {
		return nil, errx.ErrSessionNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryCheckpointStore) Save(_ context.Context, st *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[st.SessionID] = st.Clone()
	return nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *MemoryCheckpointStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryTranscriptRepository is the in-process transcript used without Redis.
type MemoryTranscriptRepository struct {
	mu   sync.RWMutex
	data map[string][]model.Message
}

func NewMemoryTranscriptRepository() *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{data: map[string][]model.Message{}}
}

func (r *MemoryTranscriptRepository) AddMessages(_ context.Context, sessionID string, messages ...model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[sessionID] = append(r.data[sessionID], messages...)
	return nil
}

func (r *MemoryTranscriptRepository) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &model.ConversationHistory{
		SessionID: sessionID,
		Messages:  append([]model.Message{}, r.data[sessionID]...),
	}, nil
}

func (r *MemoryTranscriptRepository) ClearHistory(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, sessionID)
	return nil
}

func (r *MemoryTranscriptRepository) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data[sessionID]), nil
}

var (
	_ model.CheckpointStore      = (*MemoryCheckpointStore)(nil)
	_ model.TranscriptRepository = (*MemoryTranscriptRepository)(nil)
)
