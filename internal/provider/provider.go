// Package provider implements the boundary to LLM backends. Each client
// translates the canonical message history into provider calls and provider
// responses back into the canonical Reply shape, declaring the fixed tool
// catalog on every call. Adding a backend means implementing
// forgetypes.ProviderClient and adding one case to New.
package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"forgeshell/pkg/forgetypes"
)

// ErrMalformedResponse marks a backend reply that cannot be decoded into the
// canonical shape. The turn is retryable; no history mutation has happened.
var ErrMalformedResponse = errors.New("malformed provider response")

// Error is a recoverable transport or authentication failure. It is reported
// to the operator and the session continues.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New selects a provider client by name. API keys are validated lazily, on
// the first request.
func New(name, apiKey string) (forgetypes.ProviderClient, error) {
	switch name {
	case "anthropic":
		return NewAnthropicClient(apiKey), nil
	case "openai":
		return NewOpenAIClient(apiKey), nil
	case "gemini":
		return NewGeminiClient(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// newToolRequest builds the canonical ToolRequest from a raw backend tool
// call, enforcing the mandatory rationale_text parameter. Backends that do
// not assign call ids get a generated one.
func newToolRequest(callID, toolName string, args map[string]any) (*forgetypes.ToolRequest, error) {
	rationale, _ := args["rationale_text"].(string)
	if rationale == "" {
		return nil, fmt.Errorf("%w: tool call %q carries no rationale_text", ErrMalformedResponse, toolName)
	}
	delete(args, "rationale_text")

	if callID == "" {
		callID = uuid.NewString()
	}

	return &forgetypes.ToolRequest{
		RequestID:  callID,
		ToolName:   toolName,
		Parameters: args,
		Rationale:  rationale,
	}, nil
}

// decodeToolArgs unmarshals raw tool-call arguments. The input may be a JSON
// string from the wire or an already-marshaled structure.
func decodeToolArgs(raw any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return decodeToolArgsJSON(data)
}

func decodeToolArgsJSON(data []byte) (map[string]any, error) {
	args := make(map[string]any)
	if len(data) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("%w: undecodable tool arguments: %v", ErrMalformedResponse, err)
	}
	return args, nil
}

// combineSystem merges the adapter-level system prompt with system-role
// messages found in the history, in order.
func combineSystem(systemPrompt string, history []forgetypes.Message) string {
	combined := systemPrompt
	for _, msg := range history {
		if msg.Role != forgetypes.RoleSystem {
			continue
		}
		if combined != "" {
			combined += "\n\n"
		}
		combined += msg.Content
	}
	return combined
}
