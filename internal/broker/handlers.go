package broker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"forgeshell/pkg/forgetypes"
)

// RegisterBuiltins installs the built-in tool handlers. defaultWorkingDir is
// used by runCommand when the request carries no working_directory.
func RegisterBuiltins(b *Broker, defaultWorkingDir string) {
	b.Register("runCommand", runCommandHandler(defaultWorkingDir))
	b.Register("readFile", readFileHandler)
	b.Register("writeFile", writeFileHandler)
}

// runCommandHandler executes the command through bash and captures stdout,
// stderr and the exit code. A nonzero exit is a successful execution with the
// code recorded; only a failure to spawn is an error.
func runCommandHandler(defaultWorkingDir string) forgetypes.ToolHandler {
	return func(req *forgetypes.ToolRequest) (map[string]any, error) {
		command := req.StringParam("command")
		if command == "" {
			return nil, errors.New("runCommand: missing command parameter")
		}

		workingDir := req.StringParam("working_directory")
		if workingDir == "" {
			workingDir = defaultWorkingDir
		}

		cmd := exec.Command("bash", "-c", command)
		cmd.Dir = workingDir

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		exitCode := 0
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("runCommand: %w", err)
			}
		}

		return map[string]any{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": exitCode,
		}, nil
	}
}

// readFileHandler returns the file content and its size.
func readFileHandler(req *forgetypes.ToolRequest) (map[string]any, error) {
	path := req.StringParam("path")
	if path == "" {
		return nil, errors.New("readFile: missing path parameter")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readFile: %w", err)
	}

	return map[string]any{
		"path":    path,
		"content": string(content),
		"size":    len(content),
	}, nil
}

// writeFileHandler writes the full content to path, creating or overwriting.
func writeFileHandler(req *forgetypes.ToolRequest) (map[string]any, error) {
	path := req.StringParam("path")
	if path == "" {
		return nil, errors.New("writeFile: missing path parameter")
	}
	content, ok := req.Parameters["content"].(string)
	if !ok {
		return nil, errors.New("writeFile: missing content parameter")
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("writeFile: %w", err)
	}

	return map[string]any{
		"path":          path,
		"bytes_written": len(content),
	}, nil
}
