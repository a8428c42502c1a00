// Package forgetypes defines the canonical types shared across ForgeShell.
// This file contains the message, tool request and tool result shapes that the
// provider adapters, the tool broker and the session orchestrator exchange.
package forgetypes

// Message roles in the canonical conversation history.
const (
	RoleSystem     = "system"
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "tool_result"
)

// Message represents a single entry in the session history.
// Assistant messages that carried a tool call keep the call id, tool name and
// raw arguments so provider adapters can replay them in their native format.
type Message struct {
	Role       string `json:"role" yaml:"role"`
	Content    string `json:"content" yaml:"content"`
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	ToolArgs   string `json:"tool_args,omitempty" yaml:"tool_args,omitempty"`
}

// ToolRequest is an action the backend asked for. It is created by a provider
// adapter and consumed exactly once by the tool broker.
type ToolRequest struct {
	RequestID  string         `json:"request_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Rationale  string         `json:"rationale_text"`
}

// StringParam returns a string parameter by name, empty when absent or not a string.
func (r *ToolRequest) StringParam(name string) string {
	v, ok := r.Parameters[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ToolStatus is the outcome classification of a tool execution.
type ToolStatus string

// Tool execution outcomes. Declined is a normal outcome, not an error.
const (
	ToolStatusSuccess  ToolStatus = "success"
	ToolStatusError    ToolStatus = "error"
	ToolStatusDeclined ToolStatus = "declined"
)

// ToolResult is the broker's answer to exactly one ToolRequest.
// RequestID always matches the request that produced it.
type ToolResult struct {
	RequestID string         `json:"request_id"`
	ToolName  string         `json:"tool_name"`
	Status    ToolStatus     `json:"status"`
	Data      map[string]any `json:"data"`
}

// Reply is the canonical shape of a backend response: conversation text,
// plus at most one tool request.
type Reply struct {
	Text        string
	ToolRequest *ToolRequest
}
