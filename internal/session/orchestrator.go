package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"forgeshell/internal/config"
	"forgeshell/internal/contextfile"
	"forgeshell/internal/logger"
	"forgeshell/internal/provider"
	"forgeshell/pkg/forgetypes"
)

// Console is the orchestrator's view of the operator terminal.
type Console interface {
	// ReadInput blocks for one line of operator input. io.EOF terminates the
	// session cleanly.
	ReadInput(prompt string) (string, error)

	// Print writes plain text to the operator.
	Print(text string)

	// PrintAssistant renders assistant conversation text (markdown-aware).
	PrintAssistant(text string)

	// PrintError reports a recoverable error to the operator.
	PrintError(err error)
}

// Orchestrator composes the context bundle, provider client, tool broker and
// console into the turn-taking state machine. At most one tool request is
// unresolved at any time: the pending request lives in a single field written
// and cleared by the single-threaded Run loop.
type Orchestrator struct {
	cfg     *config.Config
	bundle  *contextfile.Bundle
	client  forgetypes.ProviderClient
	broker  forgetypes.ToolExecutor
	console Console

	session *Session
	seed    []forgetypes.Message
	pending *forgetypes.ToolRequest
	log     *log.Logger
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, bundle *contextfile.Bundle, client forgetypes.ProviderClient, executor forgetypes.ToolExecutor, console Console) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		bundle:  bundle,
		client:  client,
		broker:  executor,
		console: console,
		session: NewSession(cfg.WorkingDir, cfg.MaxHistory),
		log:     logger.NewStyledLogger("Orchestrator"),
	}
}

// Session exposes the session state for inspection (prompt rendering, tests).
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Startup seeds the session from the bundle and restores a snapshot when one
// exists. Load warnings are surfaced to the operator, never raised.
func (o *Orchestrator) Startup() {
	for _, w := range o.bundle.Warnings() {
		o.console.Print("context warning: " + w.String())
	}

	o.session.ActivePersona = o.initialPersona()
	o.seed = o.seedHistory()
	o.session.History = append([]forgetypes.Message{}, o.seed...)
	o.session.State = StateAwaitingProviderResponse

	o.restoreSnapshot()

	o.log.Info("Session started",
		"persona", o.session.ActivePersona,
		"provider", o.client.ProviderName(),
		"documents", len(o.bundle.DocumentIDs()))
}

// initialPersona picks the configured default persona when it is a member of
// the bundle's persona set, otherwise the first declared persona.
func (o *Orchestrator) initialPersona() string {
	personas := o.bundle.PersonaIDs()
	if o.cfg.DefaultPersona != "" {
		if o.bundle.HasPersona(o.cfg.DefaultPersona) {
			return o.cfg.DefaultPersona
		}
		o.console.Print(fmt.Sprintf("unknown persona %q in configuration, falling back", o.cfg.DefaultPersona))
	}
	if len(personas) > 0 {
		return personas[0]
	}
	return ""
}

// seedHistory builds the initial history: one system message carrying the
// bundle's grounding documents, plus the prompt template as the opening user
// turn with {persona} substituted.
func (o *Orchestrator) seedHistory() []forgetypes.Message {
	var seed []forgetypes.Message
	if grounding := o.bundle.GroundingText(); grounding != "" {
		seed = append(seed, forgetypes.Message{Role: forgetypes.RoleSystem, Content: grounding})
	}
	if tmpl := o.bundle.PromptTemplate(); tmpl != "" {
		opening := strings.ReplaceAll(tmpl, "{persona}", o.session.ActivePersona)
		seed = append(seed, forgetypes.Message{Role: forgetypes.RoleUser, Content: opening})
	}
	return seed
}

// Run drives the state machine until the session terminates.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Startup()

	for o.session.State != StateTerminated {
		switch o.session.State {
		case StateAwaitingProviderResponse:
			o.providerTurn(ctx)
		case StateAwaitingToolExecution:
			o.toolTurn()
		case StateAwaitingUserInput:
			o.userTurn()
		}
	}

	o.checkpoint()
	return nil
}

// providerTurn performs one adapter call. Recoverable failures are reported
// and leave the history untouched so the turn can be retried.
func (o *Orchestrator) providerTurn(ctx context.Context) {
	o.log.Debug("Provider turn", "state", o.session.State.String(), "history", len(o.session.History))

	reply, err := o.client.Send(ctx, forgetypes.SendRequest{
		History:      o.session.History,
		SystemPrompt: o.personaPrompt(),
		Model:        o.cfg.Model,
		MaxTokens:    o.cfg.MaxTokens,
	})
	if err != nil {
		o.reportProviderFailure(err)
		o.session.State = StateAwaitingUserInput
		return
	}

	// The model has now reacted to the last tool outcome, so the pair is
	// prunable again.
	o.session.SetPendingCall("")

	if reply.Text != "" {
		o.console.PrintAssistant(reply.Text)
	}

	if reply.ToolRequest != nil {
		o.session.SetPendingCall(reply.ToolRequest.RequestID)
		o.session.Append(assistantToolCallMessage(reply))
		o.pending = reply.ToolRequest
		o.session.State = StateAwaitingToolExecution
		return
	}

	o.session.Append(forgetypes.Message{Role: forgetypes.RoleAssistant, Content: reply.Text})
	o.session.State = StateAwaitingUserInput
	o.checkpoint()
}

// toolTurn resolves the pending tool request through the broker and feeds the
// outcome back to the provider. The model must react to the outcome before a
// user turn is allowed to interleave.
func (o *Orchestrator) toolTurn() {
	req := o.pending
	o.pending = nil
	if req == nil {
		// Defensive: nothing to execute, hand the turn back to the operator.
		o.session.State = StateAwaitingUserInput
		return
	}

	result := o.broker.Execute(req)
	o.log.Debug("Tool resolved", "tool", req.ToolName, "status", string(result.Status))

	o.session.Append(forgetypes.Message{
		Role:       forgetypes.RoleToolResult,
		Content:    serializeResult(result),
		ToolCallID: req.RequestID,
		ToolName:   req.ToolName,
	})
	o.session.State = StateAwaitingProviderResponse
}

// userTurn reads operator input. Session-control commands are intercepted
// here and never forwarded to the provider.
func (o *Orchestrator) userTurn() {
	line, err := o.console.ReadInput(o.prompt())
	if err != nil {
		if !errors.Is(err, io.EOF) {
			o.console.PrintError(err)
		}
		o.session.State = StateTerminated
		return
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, commandPrefix) {
		o.handleCommand(line)
		return
	}

	o.session.Append(forgetypes.Message{Role: forgetypes.RoleUser, Content: line})
	o.session.State = StateAwaitingProviderResponse
}

// SwitchPersona validates the target id against the bundle's persona set
// before committing. An invalid id leaves the active persona unchanged; no
// partial switch is ever observable.
func (o *Orchestrator) SwitchPersona(id string) error {
	if !o.bundle.HasPersona(id) {
		return fmt.Errorf("unknown persona %q (available: %s)", id, strings.Join(o.bundle.PersonaIDs(), ", "))
	}
	o.session.ActivePersona = id
	o.log.Info("Persona switched", "persona", id)
	return nil
}

// personaPrompt returns the active persona's document content, empty when no
// persona is active.
func (o *Orchestrator) personaPrompt() string {
	if o.session.ActivePersona == "" {
		return ""
	}
	doc, ok := o.bundle.Document(o.session.ActivePersona)
	if !ok {
		return ""
	}
	return doc.Content
}

func (o *Orchestrator) prompt() string {
	if o.session.ActivePersona != "" {
		return o.session.ActivePersona + "> "
	}
	return "forge> "
}

// reportProviderFailure distinguishes malformed responses from transport
// failures in the operator-facing message. Both are recoverable.
func (o *Orchestrator) reportProviderFailure(err error) {
	if errors.Is(err, provider.ErrMalformedResponse) {
		o.console.PrintError(fmt.Errorf("backend reply could not be decoded (%w); use %sretry to try again", err, commandPrefix))
		return
	}
	o.console.PrintError(fmt.Errorf("provider call failed (%w); use %sretry to try again", err, commandPrefix))
}

// assistantToolCallMessage records the assistant turn that requested a tool,
// keeping the raw arguments (rationale included) for provider replay.
func assistantToolCallMessage(reply *forgetypes.Reply) forgetypes.Message {
	req := reply.ToolRequest

	args := make(map[string]any, len(req.Parameters)+1)
	for k, v := range req.Parameters {
		args[k] = v
	}
	args["rationale_text"] = req.Rationale
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}

	return forgetypes.Message{
		Role:       forgetypes.RoleAssistant,
		Content:    reply.Text,
		ToolCallID: req.RequestID,
		ToolName:   req.ToolName,
		ToolArgs:   string(raw),
	}
}

// serializeResult renders a tool result as the JSON payload stored in the
// tool_result history entry.
func serializeResult(result forgetypes.ToolResult) string {
	payload := map[string]any{
		"status": string(result.Status),
		"data":   result.Data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"status":%q}`, string(result.Status))
	}
	return string(raw)
}
