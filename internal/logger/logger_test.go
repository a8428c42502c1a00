package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetDebugReachesComponentLoggers(t *testing.T) {
	component := NewStyledLogger("Test")

	assert.True(t, SetDebug(true))
	assert.True(t, IsDebug())
	assert.Equal(t, log.DebugLevel, component.GetLevel())

	assert.False(t, SetDebug(false))
	assert.False(t, IsDebug())
	assert.Equal(t, log.InfoLevel, component.GetLevel())
}

func TestNewStyledLoggerInheritsCurrentLevel(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	component := NewStyledLogger("Test")
	assert.Equal(t, log.DebugLevel, component.GetLevel())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"WARN", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), "level %q", tt.input)
	}
}
