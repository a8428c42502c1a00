// Package main provides the ForgeShell CLI application entry point.
// ForgeShell mediates a conversation between an operator and an LLM backend
// whose side-effecting actions are gated by operator confirmation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forgeshell/internal/broker"
	"forgeshell/internal/config"
	"forgeshell/internal/contextfile"
	"forgeshell/internal/logger"
	"forgeshell/internal/provider"
	"forgeshell/internal/session"
	"forgeshell/internal/shell"
)

var (
	logLevel string
	logFile  string
	version  = "0.1.0" // This could be set at build time
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forgeshell",
	Short: "ForgeShell - confirmation-gated LLM agent shell",
	Long: `ForgeShell runs a persona-driven conversation with an LLM backend.
Backend-requested actions (shell commands, file reads and writes) are
presented with their rationale and executed only after operator confirmation.`,
	Run: runSession,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("ForgeShell v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.String("context-file", "", "Path to the context-definition file (required)")
	flags.String("provider", "", "LLM backend: anthropic, openai or gemini")
	flags.String("model", "", "Model identifier for the selected provider")
	flags.String("persona", "", "Persona to activate at startup")
	flags.Int("max-history", 0, "History bound; oldest non-system entries are dropped first")
	flags.Int("max-tokens", 0, "Completion token cap per provider call")
	flags.Bool("allow-external-paths", false, "Permit context document references outside the definition directory")
	flags.String("snapshot-file", "", "Session snapshot path for resume across restarts")

	for _, name := range []string{
		"context-file", "provider", "model", "persona",
		"max-history", "max-tokens", "allow-external-paths", "snapshot-file",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := logger.Configure(logLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runSession(_ *cobra.Command, _ []string) {
	logger.Info("Starting ForgeShell", "version", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Configuration error", "error", err)
	}

	bundle, err := contextfile.Load(cfg.ContextFile, contextfile.Options{
		AllowExternalPaths: cfg.AllowExternalPaths,
	})
	if err != nil {
		logger.Fatal("Failed to load context file", "error", err)
	}

	client, err := provider.New(cfg.Provider, cfg.APIKey)
	if err != nil {
		logger.Fatal("Failed to create provider client", "error", err)
	}

	console, err := shell.New()
	if err != nil {
		logger.Fatal("Failed to initialize terminal", "error", err)
	}
	defer func() { _ = console.Close() }()

	b := broker.New(console)
	broker.RegisterBuiltins(b, cfg.WorkingDir)

	orchestrator := session.New(cfg, bundle, client, b, console)
	if err := orchestrator.Run(context.Background()); err != nil {
		logger.Fatal("Session failed", "error", err)
	}

	logger.Info("Session ended")
}
