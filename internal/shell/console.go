// Package shell provides the operator-facing terminal: a readline input
// loop, markdown rendering for assistant text and the confirmation prompt
// the tool broker blocks on.
package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/muesli/termenv"

	"forgeshell/pkg/forgetypes"
)

var (
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Console implements the orchestrator's Console interface and the broker's
// Confirmer on top of a readline instance.
type Console struct {
	rl       *readline.Instance
	renderer *glamour.TermRenderer
}

// New creates a console. The markdown style follows the terminal background.
func New() (*Console, error) {
	rl, err := readline.New("forge> ")
	if err != nil {
		return nil, fmt.Errorf("readline init: %w", err)
	}

	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Rendering is cosmetic; fall back to plain text output.
		renderer = nil
	}

	return &Console{rl: rl, renderer: renderer}, nil
}

// Close releases the readline instance.
func (c *Console) Close() error {
	return c.rl.Close()
}

// ReadInput blocks for one line of operator input. Ctrl-D surfaces as io.EOF
// and ends the session; Ctrl-C clears the current line.
func (c *Console) ReadInput(prompt string) (string, error) {
	c.rl.SetPrompt(prompt)
	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return "", err
		}
		return line, nil
	}
}

// Print writes plain text to the operator.
func (c *Console) Print(text string) {
	fmt.Println(text)
}

// PrintAssistant renders assistant conversation text as markdown.
func (c *Console) PrintAssistant(text string) {
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(text); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(text)
}

// PrintError reports a recoverable error to the operator.
func (c *Console) PrintError(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("error:")+" "+err.Error())
}

// Confirm presents the rationale and concrete action, then blocks for an
// explicit accept/decline decision. Anything but an explicit yes declines.
func (c *Console) Confirm(_ *forgetypes.ToolRequest, presentation string) (bool, error) {
	fmt.Println(confirmStyle.Render("The assistant wants to perform an action:"))
	fmt.Print(presentation)

	for {
		answer, err := c.ReadInput("Allow this action? [y/N] ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			c.Print("please answer y or n")
		}
	}
}
