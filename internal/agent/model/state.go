package model

import (
	"encoding/json"
	"strings"
)

// MaxActionHistory bounds ConversationState.ActionHistory.
const MaxActionHistory = 5

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. Order in ConversationState.Messages is conversation order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ToolCategory string

const (
	CategoryInput     ToolCategory = "input"
	CategoryRetrieval ToolCategory = "retrieval"
)

// ActionRecord is one entry of the trailing node log used for loop detection.
type ActionRecord struct {
	Step    int    `json:"step"`
	Node    string `json:"node"`
	Outcome string `json:"outcome"`
}

// DecisionContext is the audit trail of the last routing decision.
type DecisionContext struct {
	UserIntent             string         `json:"user_intent"`
	AvailableData          map[string]any `json:"available_data"`
	ToolRequirements       []string       `json:"tool_requirements"`
	Reasoning              string         `json:"reasoning"`
	AlternativesConsidered []string       `json:"alternatives_considered"`
}

// TranslationInfo records what the input translation stage did this turn.
type TranslationInfo struct {
	Enabled          bool   `json:"enabled"`
	OriginalLanguage string `json:"original_language"`
	TargetLanguage   string `json:"target_language"`
	OriginalInput    string `json:"original_input"`
	TranslatedInput  string `json:"translated_input"`
}

// Interrupt describes a suspended turn: which node is waiting and for which value.
type Interrupt struct {
	Node   string `json:"node"`
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

// ConversationState is the record threaded through every node of one session.
// Nodes treat it as immutable: they work on a Clone and return it.
type ConversationState struct {
	SessionID             string            `json:"session_id"`
	Messages              []Message         `json:"messages"`
	UserInput             string            `json:"user_input"`
	ExtractedData         map[string]any    `json:"extracted_data"`
	QuerySpec             map[string]any    `json:"query_spec"`
	ToolResult            *ToolResult       `json:"tool_result,omitempty"`
	LastToolSummary       string            `json:"last_tool_summary"`
	LastToolContext       *ToolContext      `json:"last_tool_context,omitempty"`
	NextAction            NextAction        `json:"next_action"`
	ChosenTool            string            `json:"chosen_tool"`
	ToolCategory          ToolCategory      `json:"tool_category"`
	ValidationErrors      []string          `json:"validation_errors"`
	ConversationActive    bool              `json:"conversation_active"`
	DecisionJustification string            `json:"decision_justification"`
	DecisionContext       *DecisionContext  `json:"decision_context,omitempty"`
	ActionHistory         []ActionRecord    `json:"action_history"`
	ErrorMessage          string            `json:"error_message"`
	Translation           *TranslationInfo  `json:"translation,omitempty"`
	Pending               *Interrupt        `json:"pending,omitempty"`
	ResumeValues          map[string]string `json:"resume_values"`
	Turn                  int               `json:"turn"`

	// EntryNode and Path are per-turn scratch values written by the graph. They are not persisted.
	EntryNode string   `json:"-"`
	Path      []string `json:"-"`
}

// NewConversationState returns a state with safe defaults for a new session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID:          sessionID,
		Messages:           []Message{},
		ExtractedData:      map[string]any{},
		QuerySpec:          map[string]any{},
		NextAction:         WaitUserInput(),
		ValidationErrors:   []string{},
		ConversationActive: true,
		ActionHistory:      []ActionRecord{},
		ResumeValues:       map[string]string{},
	}
}

// Clone returns a deep copy of s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message{}, s.Messages...)
	out.ExtractedData = cloneMap(s.ExtractedData)
	out.QuerySpec = cloneMap(s.QuerySpec)
	out.ValidationErrors = append([]string{}, s.ValidationErrors...)
	out.ActionHistory = append([]ActionRecord{}, s.ActionHistory...)
	out.Path = append([]string(nil), s.Path...)
	out.ResumeValues = make(map[string]string, len(s.ResumeValues))
	for k, v := range s.ResumeValues {
		out.ResumeValues[k] = v
	}
	if s.ToolResult != nil {
		tr := s.ToolResult.Clone()
		out.ToolResult = &tr
	}
	if s.LastToolContext != nil {
		tc := *s.LastToolContext
		tc.Data = cloneMap(s.LastToolContext.Data)
		out.LastToolContext = &tc
	}
	if s.DecisionContext != nil {
		dc := *s.DecisionContext
		dc.AvailableData = cloneMap(s.DecisionContext.AvailableData)
		dc.ToolRequirements = append([]string{}, s.DecisionContext.ToolRequirements...)
		dc.AlternativesConsidered = append([]string{}, s.DecisionContext.AlternativesConsidered...)
		out.DecisionContext = &dc
	}
	if s.Translation != nil {
		t := *s.Translation
		out.Translation = &t
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return &out
}

// AppendMessage adds a message, skipping blank content.
func (s *ConversationState) AppendMessage(role Role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// LastMessage returns the final message, if any.
func (s *ConversationState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the content of the most recent user message.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the content of the most recent assistant message.
func (s *ConversationState) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecentMessages returns at most n trailing messages.
func (s *ConversationState) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// RecentActions returns at most n trailing action records.
func (s *ConversationState) RecentActions(n int) []ActionRecord {
	if n <= 0 || len(s.ActionHistory) <= n {
		return s.ActionHistory
	}
	return s.ActionHistory[len(s.ActionHistory)-n:]
}

// RecordAction appends an action record and truncates the history from the front.
func (s *ConversationState) RecordAction(node, outcome string) {
	step := 1
	if n := len(s.ActionHistory); n > 0 {
		step = s.ActionHistory[n-1].Step + 1
	}
	s.ActionHistory = append(s.ActionHistory, ActionRecord{Step: step, Node: node, Outcome: outcome})
	if len(s.ActionHistory) > MaxActionHistory {
		s.ActionHistory = append([]ActionRecord{}, s.ActionHistory[len(s.ActionHistory)-MaxActionHistory:]...)
	}
}

// MergeExtracted fills keys in existing that are absent or empty; non-empty values are kept.
func MergeExtracted(existing, incoming map[string]any) map[string]any {
	out := cloneMap(existing)
	for k, v := range incoming {
		if cur, ok := out[k]; !ok || IsEmptyValue(cur) {
			out[k] = v
		}
	}
	return out
}

// IsEmptyValue reports whether v counts as "not provided".
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	case []string:
		return append([]string{}, t...)
	}
	return v
}

// MarshalIndent renders the state for inspection commands.
func (s *ConversationState) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
