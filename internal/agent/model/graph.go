package model

// Entry selects how a turn enters the state machine.
type Entry int

const (
	// EntrySend delivers a new user message.
	EntrySend Entry = iota
	// EntryResume feeds a value to the node recorded in ConversationState.Pending.
	EntryResume
	// EntryExit runs the exit evaluator on host request.
	EntryExit
)

func (e Entry) String() string {
	switch e {
	case EntryResume:
		return "resume"
	case EntryExit:
		return "exit"
	default:
		return "send"
	}
}

// TurnRequest is the graph input: the checkpointed state plus what arrived.
type TurnRequest struct {
	State *ConversationState
	Entry Entry
	Input string
}

// TurnTrace is per-invocation graph local state.
// It is only touched inside state handlers and compose.ProcessState.
type TurnTrace struct {
	SessionID  string
	Entry      Entry
	ResumeNode string
	Path       []string
}

// TurnResult is what a host receives after one turn.
type TurnResult struct {
	SessionID string             `json:"session_id"`
	Reply     string             `json:"reply"`
	Replies   []string           `json:"replies,omitempty"`
	Interrupt *Interrupt         `json:"interrupt,omitempty"`
	Ended     bool               `json:"ended"`
	Path      []string           `json:"path,omitempty"`
	State     *ConversationState `json:"-"`
}
