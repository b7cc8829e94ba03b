// Package cmd provides the CLI commands for quarry.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/logging"
	"github.com/codequarry/quarry/pkg/version"
)

// Debug logging flag, shared across commands.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Hybrid code search for AI coding agents",
		Long: `Quarry provides hybrid search (keyword + semantic) over codebases
for AI coding agents, served over the Model Context Protocol.

The index lives in memory: it is built at startup, kept fresh by a
file watcher, and leaves nothing behind in the project directory.

Run 'quarry' in a project directory to start the MCP server.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{
				path:      ".",
				transport: "stdio",
				noWatch:   noWatch,
			})
		},
	}

	cmd.SetVersionTemplate("quarry version {{.Version}}\n")

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable file watching; the index stays as built at startup")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.quarry/logs/")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startDebugLogging installs a file-only debug logger when --debug is set.
// The log file never mixes with command output, so the flag is safe for
// every command, serve included.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

// stopDebugLogging flushes and closes the debug log file.
func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// setupCommandLogging installs file-only logging for an interactive
// command and returns a cleanup. Under --debug the root hook already
// installed a debug logger, which stays in place. A failed setup is not
// fatal for CLI commands; the command just runs unlogged.
func setupCommandLogging(cfg *config.Config) func() {
	if debugMode {
		return func() {}
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  logging.LogPathIn(cfg.Logging.Dir),
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
