package model

// ToolResult is the uniform envelope every tool returns.
type ToolResult struct {
	Success bool           `json:"success"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Summary string         `json:"summary"`
	Error   string         `json:"error,omitempty"`
}

// FailedResult builds a failure envelope; errMsg falls back to msg so Error is never empty.
func FailedResult(toolType, msg, errMsg string, data map[string]any) ToolResult {
	if errMsg == "" {
		errMsg = msg
	}
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return ToolResult{
		Success: false,
		Type:    toolType,
		Message: msg,
		Data:    data,
		Summary: msg,
		Error:   errMsg,
	}
}

// Status is "success" or "failure".
func (r ToolResult) Status() string {
	if r.Success {
		return "success"
	}
	return "failure"
}

func (r ToolResult) Clone() ToolResult {
	out := r
	if r.Data != nil {
		out.Data = cloneMap(r.Data)
	}
	return out
}

// ToolContext is the digest of the last tool run handed to later prompts.
type ToolContext struct {
	Tool     string         `json:"tool"`
	Category ToolCategory   `json:"category"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary"`
	Data     map[string]any `json:"data,omitempty"`
}
