package model

import (
	"fmt"
	"strings"
)

type ActionKind int

const (
	ActionChat ActionKind = iota
	ActionEnd
	ActionTool
	ActionWaitUserInput
)

const (
	tokenChat          = "chat"
	tokenEnd           = "end"
	tokenWaitUserInput = "wait_user_input"
	toolPrefix         = "tool:"
)

// NextAction is the transition target chosen by the router.
// The zero value is chat.
type NextAction struct {
	Kind ActionKind
	Tool string
}

func Chat() NextAction          { return NextAction{Kind: ActionChat} }
func End() NextAction           { return NextAction{Kind: ActionEnd} }
func WaitUserInput() NextAction { return NextAction{Kind: ActionWaitUserInput} }
func UseTool(name string) NextAction {
	return NextAction{Kind: ActionTool, Tool: name}
}

// IsTool reports whether the action names a tool.
func (a NextAction) IsTool() bool { return a.Kind == ActionTool && a.Tool != "" }

// String returns the router token: a tool name, "chat", "end" or "wait_user_input".
func (a NextAction) String() string {
	switch a.Kind {
	case ActionEnd:
		return tokenEnd
	case ActionWaitUserInput:
		return tokenWaitUserInput
	case ActionTool:
		return a.Tool
	default:
		return tokenChat
	}
}

// ParseDecisionToken maps a router token to an action. Tool resolution is
// done by the caller; any other token falls through to chat.
func ParseDecisionToken(token string) NextAction {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case tokenEnd:
		return End()
	case tokenWaitUserInput:
		return WaitUserInput()
	default:
		return Chat()
	}
}

func (a NextAction) MarshalText() ([]byte, error) {
	if a.Kind == ActionTool {
		if a.Tool == "" {
			return nil, fmt.Errorf("tool action without tool name")
		}
		return []byte(toolPrefix + a.Tool), nil
	}
	return []byte(a.String()), nil
}

func (a *NextAction) UnmarshalText(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, toolPrefix) {
		*a = UseTool(strings.TrimPrefix(s, toolPrefix))
		return nil
	}
	*a = ParseDecisionToken(s)
	return nil
}
