// Package broker executes or declines backend-requested tool actions after
// operator confirmation. A handler failure is converted to a ToolResult with
// status error at the dispatch boundary and never raised past it, so the
// session loop survives any single tool failure. The broker performs no
// sandboxing; operator confirmation is the only safety control.
package broker

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sergi/go-diff/diffmatchpatch"

	"forgeshell/internal/logger"
	"forgeshell/pkg/forgetypes"
)

// Broker mediates between backend-requested actions and their real,
// irreversible execution. Handlers are registered by tool name in an open
// table; adding a tool is a table entry, never a dispatch change.
type Broker struct {
	handlers  map[string]forgetypes.ToolHandler
	confirmer forgetypes.Confirmer
	log       *log.Logger
}

// New creates a broker with an empty handler table.
func New(confirmer forgetypes.Confirmer) *Broker {
	return &Broker{
		handlers:  make(map[string]forgetypes.ToolHandler),
		confirmer: confirmer,
		log:       logger.NewStyledLogger("Broker"),
	}
}

// Register adds or replaces the handler for a tool name.
func (b *Broker) Register(name string, handler forgetypes.ToolHandler) {
	b.handlers[name] = handler
}

// HandlerNames returns the registered tool names, sorted.
func (b *Broker) HandlerNames() []string {
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the confirmation protocol for one request and always returns
// a result carrying the request's id. It blocks until the operator decides.
func (b *Broker) Execute(req *forgetypes.ToolRequest) forgetypes.ToolResult {
	b.log.Debug("Tool request received", "tool", req.ToolName, "request_id", req.RequestID)

	accepted, err := b.confirmer.Confirm(req, b.Present(req))
	if err != nil {
		b.log.Warn("Confirmation read failed, treating as decline", "error", err)
		accepted = false
	}
	if !accepted {
		b.log.Info("Tool request declined", "tool", req.ToolName)
		return forgetypes.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    forgetypes.ToolStatusDeclined,
			Data:      map[string]any{"message": "operator declined the action"},
		}
	}

	handler, ok := b.handlers[req.ToolName]
	if !ok {
		b.log.Error("No handler registered", "tool", req.ToolName)
		return forgetypes.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    forgetypes.ToolStatusError,
			Data:      map[string]any{"error": fmt.Sprintf("unknown tool %q", req.ToolName)},
		}
	}

	data, err := b.dispatch(handler, req)
	if err != nil {
		b.log.Error("Tool execution failed", "tool", req.ToolName, "error", err)
		return forgetypes.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    forgetypes.ToolStatusError,
			Data:      map[string]any{"error": err.Error()},
		}
	}

	b.log.Debug("Tool executed", "tool", req.ToolName, "request_id", req.RequestID)
	return forgetypes.ToolResult{
		RequestID: req.RequestID,
		ToolName:  req.ToolName,
		Status:    forgetypes.ToolStatusSuccess,
		Data:      data,
	}
}

// dispatch invokes the handler, converting panics into errors so nothing
// escapes the broker boundary.
func (b *Broker) dispatch(handler forgetypes.ToolHandler, req *forgetypes.ToolRequest) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	return handler(req)
}

// Present renders the rationale and the concrete action for the operator.
// For writeFile over an existing file the presentation includes a diff of
// the proposed change.
func (b *Broker) Present(req *forgetypes.ToolRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool request: %s\n", req.ToolName)
	fmt.Fprintf(&sb, "Rationale: %s\n", req.Rationale)

	keys := make([]string, 0, len(req.Parameters))
	for k := range req.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, req.Parameters[k])
	}

	if req.ToolName == "writeFile" {
		if preview := writePreview(req); preview != "" {
			sb.WriteString("Proposed change:\n")
			sb.WriteString(preview)
		}
	}
	return sb.String()
}

// writePreview diffs the existing file content against the proposed content.
// Empty when the target does not exist yet or content is missing.
func writePreview(req *forgetypes.ToolRequest) string {
	path := req.StringParam("path")
	content := req.StringParam("content")
	if path == "" || content == "" {
		return ""
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(existing), content, false)
	return dmp.DiffPrettyText(diffs)
}
