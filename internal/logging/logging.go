package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how much the process logs.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the log file location. Empty uses DefaultLogPath.
	FilePath string
	// MaxSizeMB rotates the file once it exceeds this size (default 10).
	MaxSizeMB int
	// MaxFiles bounds how many rotated files are kept (default 5).
	MaxFiles int
	// WriteToStderr mirrors log lines to stderr. Must stay false in MCP
	// stdio mode.
	WriteToStderr bool
}

// DefaultConfig returns file logging defaults for interactive commands.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

func (c Config) normalized() Config {
	if c.FilePath == "" {
		c.FilePath = DefaultLogPath()
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = 5
	}
	return c
}

// Setup opens the rotating log file and returns a JSON logger writing to
// it, plus a cleanup that flushes and closes the file. The caller decides
// whether to install the logger as the slog default.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	cfg = cfg.normalized()

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(handler), cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts a level name to slog.Level. Unknown names map
// to info. The log viewer uses this for level filtering.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
