package broker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgeshell/pkg/forgetypes"
)

// scriptedConfirmer answers confirmation prompts from a fixed script and
// records every presentation it was shown.
type scriptedConfirmer struct {
	answers       []bool
	err           error
	presentations []string
}

func (c *scriptedConfirmer) Confirm(_ *forgetypes.ToolRequest, presentation string) (bool, error) {
	c.presentations = append(c.presentations, presentation)
	if c.err != nil {
		return false, c.err
	}
	if len(c.answers) == 0 {
		return false, nil
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	return answer, nil
}

func request(tool string, params map[string]any) *forgetypes.ToolRequest {
	if params == nil {
		params = map[string]any{}
	}
	return &forgetypes.ToolRequest{
		RequestID:  "req-1",
		ToolName:   tool,
		Parameters: params,
		Rationale:  "testing the broker",
	}
}

func TestExecute_DeclineNeverInvokesHandler(t *testing.T) {
	confirmer := &scriptedConfirmer{answers: []bool{false, false, false}}
	b := New(confirmer)

	invocations := 0
	b.Register("runCommand", func(_ *forgetypes.ToolRequest) (map[string]any, error) {
		invocations++
		return map[string]any{}, nil
	})

	for i := 0; i < 3; i++ {
		result := b.Execute(request("runCommand", map[string]any{"command": "ls"}))
		assert.Equal(t, forgetypes.ToolStatusDeclined, result.Status)
		assert.Equal(t, "req-1", result.RequestID)
		assert.Contains(t, result.Data, "message")
	}
	assert.Zero(t, invocations)
}

func TestExecute_ConfirmerErrorCountsAsDecline(t *testing.T) {
	confirmer := &scriptedConfirmer{err: errors.New("terminal gone")}
	b := New(confirmer)
	b.Register("runCommand", func(_ *forgetypes.ToolRequest) (map[string]any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})

	result := b.Execute(request("runCommand", map[string]any{"command": "ls"}))
	assert.Equal(t, forgetypes.ToolStatusDeclined, result.Status)
}

func TestExecute_UnknownToolIsError(t *testing.T) {
	b := New(&scriptedConfirmer{answers: []bool{true}})

	result := b.Execute(request("teleport", nil))
	assert.Equal(t, forgetypes.ToolStatusError, result.Status)
	assert.Contains(t, result.Data["error"], "unknown tool")
}

func TestExecute_HandlerErrorIsContained(t *testing.T) {
	b := New(&scriptedConfirmer{answers: []bool{true}})
	b.Register("boom", func(_ *forgetypes.ToolRequest) (map[string]any, error) {
		return nil, errors.New("disk on fire")
	})

	result := b.Execute(request("boom", nil))
	assert.Equal(t, forgetypes.ToolStatusError, result.Status)
	assert.Equal(t, "disk on fire", result.Data["error"])
}

func TestExecute_HandlerPanicIsContained(t *testing.T) {
	b := New(&scriptedConfirmer{answers: []bool{true}})
	b.Register("panic", func(_ *forgetypes.ToolRequest) (map[string]any, error) {
		panic("unexpected")
	})

	result := b.Execute(request("panic", nil))
	assert.Equal(t, forgetypes.ToolStatusError, result.Status)
	assert.Contains(t, result.Data["error"], "panicked")
}

func TestExecute_AcceptedStubReportsExitCode(t *testing.T) {
	b := New(&scriptedConfirmer{answers: []bool{true}})
	b.Register("runCommand", func(req *forgetypes.ToolRequest) (map[string]any, error) {
		assert.Equal(t, "ls", req.StringParam("command"))
		return map[string]any{"stdout": "a\nb\n", "stderr": "", "exit_code": 0}, nil
	})

	result := b.Execute(request("runCommand", map[string]any{"command": "ls"}))
	require.Equal(t, forgetypes.ToolStatusSuccess, result.Status)
	assert.Equal(t, 0, result.Data["exit_code"])
}

func TestExecute_PresentationCarriesRationaleAndAction(t *testing.T) {
	confirmer := &scriptedConfirmer{answers: []bool{false}}
	b := New(confirmer)

	b.Execute(request("runCommand", map[string]any{"command": "rm -rf build"}))

	require.Len(t, confirmer.presentations, 1)
	assert.Contains(t, confirmer.presentations[0], "testing the broker")
	assert.Contains(t, confirmer.presentations[0], "runCommand")
	assert.Contains(t, confirmer.presentations[0], "rm -rf build")
}

func TestHandlerNames_SortedBuiltins(t *testing.T) {
	b := New(&scriptedConfirmer{})
	RegisterBuiltins(b, t.TempDir())

	assert.Equal(t, []string{"readFile", "runCommand", "writeFile"}, b.HandlerNames())
}

func TestRunCommandHandler(t *testing.T) {
	dir := t.TempDir()
	handler := runCommandHandler(dir)

	t.Run("captures stdout and exit code", func(t *testing.T) {
		data, err := handler(request("runCommand", map[string]any{"command": "echo hello"}))
		require.NoError(t, err)
		assert.Equal(t, "hello\n", data["stdout"])
		assert.Equal(t, 0, data["exit_code"])
	})

	t.Run("nonzero exit is not an error", func(t *testing.T) {
		data, err := handler(request("runCommand", map[string]any{"command": "exit 3"}))
		require.NoError(t, err)
		assert.Equal(t, 3, data["exit_code"])
	})

	t.Run("runs in requested working directory", func(t *testing.T) {
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		data, err := handler(request("runCommand", map[string]any{
			"command":           "pwd",
			"working_directory": sub,
		}))
		require.NoError(t, err)
		assert.Contains(t, data["stdout"], "sub")
	})

	t.Run("missing command is an error", func(t *testing.T) {
		_, err := handler(request("runCommand", nil))
		assert.Error(t, err)
	})
}

func TestFileHandlers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")

	data, err := writeFileHandler(request("writeFile", map[string]any{
		"path":    path,
		"content": "hello broker",
	}))
	require.NoError(t, err)
	assert.Equal(t, len("hello broker"), data["bytes_written"])

	data, err = readFileHandler(request("readFile", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.Equal(t, "hello broker", data["content"])

	_, err = readFileHandler(request("readFile", map[string]any{"path": filepath.Join(dir, "absent")}))
	assert.Error(t, err)
}

func TestPresent_WriteFileDiffPreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old value\n"), 0644))

	b := New(&scriptedConfirmer{})
	presentation := b.Present(request("writeFile", map[string]any{
		"path":    path,
		"content": "new value\n",
	}))

	assert.Contains(t, presentation, "Proposed change:")
}
