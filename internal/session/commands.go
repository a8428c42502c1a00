package session

import (
	"fmt"
	"strings"

	"forgeshell/internal/logger"
	"forgeshell/pkg/forgetypes"
)

// commandPrefix marks session-control commands. Anything starting with it is
// consumed locally and never forwarded to the provider.
const commandPrefix = `\`

const helpText = `Session commands:
  \persona <id>   switch the active persona
  \clear          reset the conversation to its seeded state
  \retry          repeat the last provider call without changing history
  \debug          toggle debug logging
  \help           show this help
  \exit           end the session (also \quit, Ctrl-D)`

// handleCommand executes one session-control command. The machine stays in
// AwaitingUserInput unless the command says otherwise.
func (o *Orchestrator) handleCommand(line string) {
	name, arg := parseCommand(line)

	switch name {
	case "help":
		o.console.Print(helpText)
		if personas := o.bundle.PersonaIDs(); len(personas) > 0 {
			o.console.Print("Personas: " + strings.Join(personas, ", "))
		}
		if tools := o.broker.HandlerNames(); len(tools) > 0 {
			o.console.Print("Tools: " + strings.Join(tools, ", "))
		}
	case "exit", "quit":
		o.session.State = StateTerminated
	case "clear":
		// Reseed so the opening turn names the currently active persona.
		o.seed = o.seedHistory()
		o.session.History = append([]forgetypes.Message{}, o.seed...)
		o.console.Print("history cleared")
		o.checkpoint()
	case "persona":
		if arg == "" {
			o.console.Print("active persona: " + o.session.ActivePersona)
			return
		}
		if err := o.SwitchPersona(arg); err != nil {
			o.console.PrintError(err)
			return
		}
		o.console.Print("persona switched to " + arg)
		o.checkpoint()
	case "retry":
		o.session.State = StateAwaitingProviderResponse
	case "debug":
		enabled := logger.SetDebug(!logger.IsDebug())
		o.console.Print(fmt.Sprintf("debug logging %v", map[bool]string{true: "on", false: "off"}[enabled]))
	default:
		o.console.PrintError(fmt.Errorf("unknown command %s%s (try %shelp)", commandPrefix, name, commandPrefix))
	}
}

// parseCommand splits a backslash command into its name and argument.
func parseCommand(line string) (name, arg string) {
	trimmed := strings.TrimPrefix(line, commandPrefix)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
