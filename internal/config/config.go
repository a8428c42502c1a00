// Package config loads and validates ForgeShell settings.
// Settings come from a config file, environment variables and CLI flags, with
// flags taking precedence. API keys are picked up from the environment, with
// .env files loaded first so local development keys work out of the box.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"forgeshell/internal/logger"
)

// Default settings applied when neither config file nor flags say otherwise.
const (
	DefaultProvider   = "anthropic"
	DefaultMaxHistory = 200
	DefaultMaxTokens  = 4096
)

// Default models per provider, used when "model" is unset.
var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"openai":    "gpt-4o",
	"gemini":    "gemini-2.0-flash",
}

// Config holds all settings the protocol core needs. The on-disk key/value
// schema is owned by this package; everything downstream receives this struct.
type Config struct {
	Provider           string // anthropic | openai | gemini
	Model              string // provider model identifier
	APIKey             string // credential for the selected provider
	ContextFile        string // path to the context-definition file
	DefaultPersona     string // persona to activate at startup (optional)
	MaxHistory         int    // history bound; 0 means unbounded
	MaxTokens          int    // completion token cap passed to the provider
	AllowExternalPaths bool   // permit absolute / parent-escaping document refs
	SnapshotFile       string // session snapshot path; empty disables snapshots
	WorkingDir         string // initial working directory for runCommand
}

// envKeys maps provider names to the environment variable carrying their key.
var envKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
}

// Load assembles the configuration from viper state and the environment.
// Missing required settings (provider credential, context file) are fatal.
func Load() (*Config, error) {
	// Best effort; a missing .env file is not an error.
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	viper.SetDefault("provider", DefaultProvider)
	viper.SetDefault("max-history", DefaultMaxHistory)
	viper.SetDefault("max-tokens", DefaultMaxTokens)

	cfg := &Config{
		Provider:           viper.GetString("provider"),
		Model:              viper.GetString("model"),
		ContextFile:        viper.GetString("context-file"),
		DefaultPersona:     viper.GetString("persona"),
		MaxHistory:         viper.GetInt("max-history"),
		MaxTokens:          viper.GetInt("max-tokens"),
		AllowExternalPaths: viper.GetBool("allow-external-paths"),
		SnapshotFile:       viper.GetString("snapshot-file"),
	}

	envKey, ok := envKeys[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (expected anthropic, openai or gemini)", cfg.Provider)
	}
	cfg.APIKey = os.Getenv(envKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing credential: %s is not set", envKey)
	}

	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}

	if cfg.ContextFile == "" {
		return nil, fmt.Errorf("missing required setting: context-file")
	}
	abs, err := filepath.Abs(cfg.ContextFile)
	if err != nil {
		return nil, fmt.Errorf("invalid context-file path %q: %w", cfg.ContextFile, err)
	}
	cfg.ContextFile = abs

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot determine working directory: %w", err)
	}
	cfg.WorkingDir = wd

	return cfg, nil
}
