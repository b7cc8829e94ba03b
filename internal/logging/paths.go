package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the active log file inside the log directory.
const LogFileName = "quarry.log"

// DefaultLogDir returns ~/.quarry/logs, or a temp-dir fallback when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".quarry", "logs")
	}
	return filepath.Join(home, ".quarry", "logs")
}

// DefaultLogPath returns the default location of the active log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), LogFileName)
}

// LogPathIn returns the active log file path inside dir, falling back to
// the default directory when dir is empty. Config may override the log
// directory; the file name is fixed.
func LogPathIn(dir string) string {
	if dir == "" {
		return DefaultLogPath()
	}
	return filepath.Join(dir, LogFileName)
}

// FindLogFile locates the log file for viewing. An explicit path wins
// when given; otherwise the default location is checked.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found at %s; run an index or serve command first", path)
}
