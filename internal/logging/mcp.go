package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for MCP stdio serving and installs
// the logger as the slog default. The stdio transport reserves stdout
// exclusively for JSON-RPC frames, and clients treat stderr noise as a
// broken handshake, so logs go to the rotating file only regardless of
// what cfg asks for.
func SetupMCPMode(cfg Config) (func(), error) {
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.normalized().FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
