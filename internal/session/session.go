// Package session implements the turn-taking state machine that drives a
// ForgeShell conversation. The orchestrator owns all mutable session state
// (history, active persona, working directory) and composes the context
// bundle, the provider client and the tool broker. Single-threaded by design:
// the loop suspends only on the provider call and on operator input, so there
// is never more than one in-flight provider call or tool request.
package session

import (
	"forgeshell/pkg/forgetypes"
)

// State enumerates the orchestrator's states.
type State int

// Orchestrator states.
const (
	StateAwaitingUserInput State = iota
	StateAwaitingProviderResponse
	StateAwaitingToolExecution
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingUserInput:
		return "AwaitingUserInput"
	case StateAwaitingProviderResponse:
		return "AwaitingProviderResponse"
	case StateAwaitingToolExecution:
		return "AwaitingToolExecution"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Session holds the mutable conversation state. It is mutated only by the
// orchestrator.
type Session struct {
	ActivePersona string
	History       []forgetypes.Message
	WorkingDir    string
	State         State
	Variables     map[string]string

	maxHistory    int
	pendingCallID string
}

// NewSession creates an empty session. maxHistory bounds the history length;
// zero or negative means unbounded.
func NewSession(workingDir string, maxHistory int) *Session {
	return &Session{
		WorkingDir: workingDir,
		State:      StateAwaitingProviderResponse,
		Variables:  make(map[string]string),
		maxHistory: maxHistory,
	}
}

// Append adds a message to the history and prunes to the configured bound.
func (s *Session) Append(msg forgetypes.Message) {
	s.History = append(s.History, msg)
	s.prune()
}

// SetPendingCall marks a tool-call id as in flight. In-flight entries are
// exempt from pruning so the backend always sees the outcome of the action it
// just requested, even under a tight bound. Clearing the id re-applies the
// bound to the now-complete pair.
func (s *Session) SetPendingCall(id string) {
	s.pendingCallID = id
	if id == "" {
		s.prune()
	}
}

// prune drops the oldest non-system entries until the history fits the bound.
// System entries are retained regardless of age so backend grounding survives
// long sessions, and entries belonging to the in-flight tool call are held
// back until the pair completes. Dropping an assistant tool-call turn also
// drops its paired tool_result (and vice versa) to keep provider replay
// consistent.
func (s *Session) prune() {
	if s.maxHistory <= 0 {
		return
	}
	for len(s.History) > s.maxHistory {
		idx := -1
		for i, m := range s.History {
			if m.Role == forgetypes.RoleSystem {
				continue
			}
			if s.pendingCallID != "" && m.ToolCallID == s.pendingCallID {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			return // only system and in-flight entries left
		}
		dropped := s.History[idx]
		s.History = append(s.History[:idx], s.History[idx+1:]...)
		if dropped.ToolCallID != "" {
			s.dropPaired(dropped.ToolCallID)
		}
	}
}

// dropPaired removes the remaining half of a tool-call pair.
func (s *Session) dropPaired(toolCallID string) {
	for i, m := range s.History {
		if m.ToolCallID == toolCallID {
			s.History = append(s.History[:i], s.History[i+1:]...)
			return
		}
	}
}

// SystemMessageCount returns the number of system-tagged history entries.
func (s *Session) SystemMessageCount() int {
	count := 0
	for _, m := range s.History {
		if m.Role == forgetypes.RoleSystem {
			count++
		}
	}
	return count
}
