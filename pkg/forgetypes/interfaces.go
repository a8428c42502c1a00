// Package forgetypes defines the canonical types shared across ForgeShell.
// This file contains the interfaces that decouple the session orchestrator
// from provider, broker and console implementations.
package forgetypes

import "context"

// SendRequest carries everything a provider adapter needs for one call.
type SendRequest struct {
	History      []Message
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// ProviderClient is the boundary to an LLM backend. Implementations translate
// the canonical history into provider calls and provider responses back into
// a Reply. On every call the fixed tool catalog is declared to the backend.
type ProviderClient interface {
	// Send performs one completion call and decodes the response.
	Send(ctx context.Context, req SendRequest) (*Reply, error)

	// ProviderName returns the backend identifier (e.g. "anthropic").
	ProviderName() string

	// IsConfigured reports whether the client has credentials to make requests.
	IsConfigured() bool
}

// ToolHandler performs the real, irreversible operation behind one tool name.
// Returned data is included in the ToolResult verbatim; a returned error is
// converted by the broker into a ToolResult with status error, never raised.
type ToolHandler func(req *ToolRequest) (map[string]any, error)

// Confirmer blocks for the operator's accept/decline decision on a tool
// request. The presentation string already contains the rationale and the
// concrete action. A read error counts as a decline.
type Confirmer interface {
	Confirm(req *ToolRequest, presentation string) (bool, error)
}

// ToolExecutor is the broker seen from the orchestrator: execute one request,
// always produce a result, and report which tools can be requested.
type ToolExecutor interface {
	Execute(req *ToolRequest) ToolResult

	// HandlerNames returns the registered tool names, sorted.
	HandlerNames() []string
}
