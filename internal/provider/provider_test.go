package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"forgeshell/pkg/forgetypes"
)

func TestCatalog_EveryToolRequiresRationale(t *testing.T) {
	specs := Catalog()
	require.NotEmpty(t, specs)

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)

		found := false
		for _, p := range spec.Params {
			if p.Name == "rationale_text" {
				found = true
				assert.True(t, p.Required, "rationale_text must be required on %s", spec.Name)
			}
		}
		assert.True(t, found, "tool %s missing rationale_text parameter", spec.Name)
		assert.Contains(t, spec.RequiredParams(), "rationale_text")
	}

	assert.ElementsMatch(t, []string{"runCommand", "readFile", "writeFile"}, names)
}

func TestToolSpec_JSONSchema(t *testing.T) {
	spec := Catalog()[0]
	schema := spec.JSONSchema()

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "command")
	assert.Contains(t, props, "rationale_text")
}

func TestNewToolRequest_MissingRationaleIsMalformed(t *testing.T) {
	_, err := newToolRequest("call_1", "runCommand", map[string]any{"command": "ls"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNewToolRequest_ExtractsRationaleAndGeneratesID(t *testing.T) {
	req, err := newToolRequest("", "readFile", map[string]any{
		"path":           "/tmp/x",
		"rationale_text": "inspect the file before editing",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, "readFile", req.ToolName)
	assert.Equal(t, "inspect the file before editing", req.Rationale)
	assert.Equal(t, "/tmp/x", req.StringParam("path"))
	assert.NotContains(t, req.Parameters, "rationale_text")
}

func TestNewToolRequest_KeepsBackendCallID(t *testing.T) {
	req, err := newToolRequest("toolu_abc", "runCommand", map[string]any{
		"command":        "ls",
		"rationale_text": "list the directory",
	})
	require.NoError(t, err)
	assert.Equal(t, "toolu_abc", req.RequestID)
}

func TestDecodeToolArgsJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid object", raw: `{"command":"ls"}`},
		{name: "empty input", raw: ""},
		{name: "not json", raw: "{{nope", wantErr: true},
		{name: "wrong shape", raw: `[1,2,3]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeToolArgsJSON([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_SelectsProviderByName(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "gemini"} {
		client, err := New(name, "test-key")
		require.NoError(t, err, name)
		assert.Equal(t, name, client.ProviderName())
		assert.True(t, client.IsConfigured())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("mystery", "key")
	assert.Error(t, err)
}

func TestCombineSystem(t *testing.T) {
	history := []forgetypes.Message{
		{Role: forgetypes.RoleSystem, Content: "grounding docs"},
		{Role: forgetypes.RoleUser, Content: "hi"},
		{Role: forgetypes.RoleSystem, Content: "more grounding"},
	}

	combined := combineSystem("persona prompt", history)
	assert.Equal(t, "persona prompt\n\ngrounding docs\n\nmore grounding", combined)

	assert.Equal(t, "grounding docs\n\nmore grounding", combineSystem("", history))
	assert.Equal(t, "", combineSystem("", nil))
}

func TestConvertMessagesToAnthropic_SkipsSystemRoles(t *testing.T) {
	history := []forgetypes.Message{
		{Role: forgetypes.RoleSystem, Content: "grounding"},
		{Role: forgetypes.RoleUser, Content: "hello"},
		{Role: forgetypes.RoleAssistant, Content: "hi there"},
		{Role: forgetypes.RoleAssistant, Content: "", ToolCallID: "toolu_1", ToolName: "readFile", ToolArgs: `{"path":"a"}`},
		{Role: forgetypes.RoleToolResult, Content: `{"status":"success"}`, ToolCallID: "toolu_1", ToolName: "readFile"},
	}

	messages := convertMessagesToAnthropic(history)
	assert.Len(t, messages, 4)
}

func TestConvertMessagesToGemini_ToolTurns(t *testing.T) {
	history := []forgetypes.Message{
		{Role: forgetypes.RoleUser, Content: "hello"},
		{Role: forgetypes.RoleAssistant, Content: "calling", ToolCallID: "id1", ToolName: "runCommand", ToolArgs: `{"command":"ls"}`},
		{Role: forgetypes.RoleToolResult, Content: `{"status":"success"}`, ToolCallID: "id1", ToolName: "runCommand"},
	}

	contents := convertMessagesToGemini(history)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	// Text part plus function-call part on the assistant turn.
	assert.Len(t, contents[1].Parts, 2)
}
