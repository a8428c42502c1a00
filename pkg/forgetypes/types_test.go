package forgetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolRequest_StringParam(t *testing.T) {
	req := &ToolRequest{
		RequestID: "r1",
		ToolName:  "runCommand",
		Parameters: map[string]any{
			"command": "ls",
			"count":   3,
		},
	}

	assert.Equal(t, "ls", req.StringParam("command"))
	assert.Empty(t, req.StringParam("count"), "non-string parameter yields empty")
	assert.Empty(t, req.StringParam("missing"))
}

func TestToolStatusValues(t *testing.T) {
	assert.Equal(t, ToolStatus("success"), ToolStatusSuccess)
	assert.Equal(t, ToolStatus("error"), ToolStatusError)
	assert.Equal(t, ToolStatus("declined"), ToolStatusDeclined)
}
