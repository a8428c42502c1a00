package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"forgeshell/pkg/forgetypes"
)

func msg(role, content string) forgetypes.Message {
	return forgetypes.Message{Role: role, Content: content}
}

func TestSession_PruneDropsOldestNonSystemFirst(t *testing.T) {
	s := NewSession("/tmp", 4)
	s.Append(msg(forgetypes.RoleSystem, "grounding"))
	s.Append(msg(forgetypes.RoleUser, "u1"))
	s.Append(msg(forgetypes.RoleAssistant, "a1"))
	s.Append(msg(forgetypes.RoleUser, "u2"))

	systemBefore := s.SystemMessageCount()
	s.Append(msg(forgetypes.RoleAssistant, "a2"))

	assert.LessOrEqual(t, len(s.History), 4)
	assert.Equal(t, systemBefore, s.SystemMessageCount(), "no system entry may be dropped")
	// u1 was the oldest non-system entry.
	assert.Equal(t, "grounding", s.History[0].Content)
	assert.Equal(t, "a1", s.History[1].Content)
}

func TestSession_PruneRetainsAllSystemEntries(t *testing.T) {
	s := NewSession("/tmp", 3)
	s.Append(msg(forgetypes.RoleSystem, "s1"))
	s.Append(msg(forgetypes.RoleSystem, "s2"))
	s.Append(msg(forgetypes.RoleSystem, "s3"))
	for i := 0; i < 10; i++ {
		s.Append(msg(forgetypes.RoleUser, "chatter"))
	}

	assert.Equal(t, 3, s.SystemMessageCount())
	assert.LessOrEqual(t, len(s.History), 3)
}

func TestSession_PruneUnboundedWhenZero(t *testing.T) {
	s := NewSession("/tmp", 0)
	for i := 0; i < 50; i++ {
		s.Append(msg(forgetypes.RoleUser, "keep"))
	}
	assert.Len(t, s.History, 50)
}

func TestSession_PruneDropsToolPairsTogether(t *testing.T) {
	s := NewSession("/tmp", 10)
	s.Append(msg(forgetypes.RoleSystem, "grounding"))
	s.Append(forgetypes.Message{Role: forgetypes.RoleAssistant, ToolCallID: "call-1", ToolName: "readFile", ToolArgs: "{}"})
	s.Append(forgetypes.Message{Role: forgetypes.RoleToolResult, ToolCallID: "call-1", ToolName: "readFile", Content: "{}"})
	for i := 0; i < 9; i++ {
		s.Append(msg(forgetypes.RoleUser, "filler"))
	}

	for _, m := range s.History {
		assert.Empty(t, m.ToolCallID, "orphaned half of a tool pair survived pruning")
	}
}

func TestSession_PruneHoldsInFlightToolPair(t *testing.T) {
	s := NewSession("/tmp", 2)
	s.Append(msg(forgetypes.RoleSystem, "grounding"))
	s.Append(msg(forgetypes.RoleUser, "do it"))

	s.SetPendingCall("call-7")
	s.Append(forgetypes.Message{Role: forgetypes.RoleAssistant, ToolCallID: "call-7", ToolName: "runCommand", ToolArgs: "{}"})
	s.Append(forgetypes.Message{Role: forgetypes.RoleToolResult, ToolCallID: "call-7", ToolName: "runCommand", Content: "{}"})

	// Both halves survive the bound while the call is in flight.
	inFlight := 0
	for _, m := range s.History {
		if m.ToolCallID == "call-7" {
			inFlight++
		}
	}
	assert.Equal(t, 2, inFlight)

	s.SetPendingCall("")
	assert.LessOrEqual(t, len(s.History), 2)
	for _, m := range s.History {
		assert.Empty(t, m.ToolCallID, "orphaned half of a tool pair survived pruning")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "AwaitingUserInput", StateAwaitingUserInput.String())
	assert.Equal(t, "AwaitingProviderResponse", StateAwaitingProviderResponse.String())
	assert.Equal(t, "AwaitingToolExecution", StateAwaitingToolExecution.String())
	assert.Equal(t, "Terminated", StateTerminated.String())
}
