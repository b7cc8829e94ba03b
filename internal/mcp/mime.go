package mcp

import "github.com/codequarry/quarry/internal/scanner"

// mimeByLanguage maps scanner language names to MIME types. Keying on
// the language rather than the extension keeps resource metadata
// aligned with the same detection the index itself uses.
var mimeByLanguage = map[string]string{
	"go":         "text/x-go",
	"javascript": "text/javascript",
	"typescript": "text/typescript",
	"python":     "text/x-python",
	"ruby":       "text/x-ruby",
	"rust":       "text/x-rust",
	"java":       "text/x-java",
	"kotlin":     "text/x-kotlin",
	"c":          "text/x-c",
	"cpp":        "text/x-c++",
	"csharp":     "text/x-csharp",
	"swift":      "text/x-swift",
	"php":        "text/x-php",
	"shell":      "text/x-sh",
	"markdown":   "text/markdown",
	"rst":        "text/x-rst",
	"text":       "text/plain",
	"json":       "application/json",
	"yaml":       "text/x-yaml",
	"toml":       "text/x-toml",
	"xml":        "text/xml",
	"sql":        "text/x-sql",
	"protobuf":   "text/x-protobuf",
	"html":       "text/html",
	"css":        "text/css",
	"dockerfile": "text/x-dockerfile",
	"makefile":   "text/x-makefile",
}

// MimeTypeForPath returns the MIME type for a file path, falling back
// to "text/plain" when the language is unknown.
func MimeTypeForPath(path string) string {
	if mime, ok := mimeByLanguage[scanner.DetectLanguage(path)]; ok {
		return mime
	}
	return "text/plain"
}
