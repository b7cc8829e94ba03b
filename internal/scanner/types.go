// Package scanner discovers indexable source files under a project root and
// extracts searchable elements from their content. Discovery streams results
// over a channel; extraction is heuristic and line-based, so it works without
// parsing and never fails.
package scanner

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFileSize is the size cap for indexable files (1 MiB). Larger
// files are almost always bundles or generated output.
const DefaultMaxFileSize = 1 * 1024 * 1024

// FileInfo describes one discovered file.
type FileInfo struct {
	// Path is the forward-slash path relative to the scan root. It doubles
	// as the file's identity in the index.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time

	// Language names the detected language, or "" when unknown.
	Language string
}

// ScanResult is one item streamed from Scan: a file or a traversal error.
type ScanResult struct {
	File *FileInfo
	Err  error
}

// Options configures a Scanner.
type Options struct {
	// Root is the directory to scan. Empty means the current directory.
	Root string

	// ExcludePatterns are extra exclusions beyond the built-in sets.
	// A pattern matches the file base name or the root-relative path
	// (path.Match syntax), "dir/**" matches a subtree, and "**/name"
	// matches a base name at any depth.
	ExcludePatterns []string

	// MaxFileSize caps indexable files in bytes. Zero means
	// DefaultMaxFileSize; negative disables the cap.
	MaxFileSize int64

	// FollowSymlinks walks through symbolic links instead of skipping them.
	FollowSymlinks bool

	// RespectGitignore honors .gitignore files found under the root.
	// Nested ignore files apply only to their own subtree. Built-in
	// ignores and ExcludePatterns always win, even over negated rules.
	RespectGitignore bool
}

// languageMap maps file extensions (and a few exact names) to languages.
var languageMap = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".py":  "python",
	".pyi": "python",

	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".sql":   "sql",
	".proto": "protobuf",
	".html":  "html",
	".css":   "css",

	"Dockerfile": "dockerfile",
	"Makefile":   "makefile",
	"makefile":   "makefile",
}

// DetectLanguage maps a file path to a language name, or "" when the
// extension is unknown. Exact file names (Dockerfile, Makefile) win over
// extensions.
func DetectLanguage(path string) string {
	base := filepath.Base(path)
	if lang, ok := languageMap[base]; ok {
		return lang
	}
	if lang, ok := languageMap[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	return ""
}
