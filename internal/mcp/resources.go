package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codequarry/quarry/internal/scanner"
)

// MaxResourceSize caps resource reads at 1MB. Indexed files larger than
// this are searchable but must be read through other means.
const MaxResourceSize = 1 << 20

// RegisterResources lists every indexed file as an MCP resource and
// returns the count. The listing reflects the index at call time; files
// indexed later are searchable but do not appear as resources until the
// server restarts.
func (s *Server) RegisterResources() int {
	paths := s.indexer.Paths()
	for _, p := range paths {
		s.registerFileResource(p)
	}

	s.logger.Info("registered resources", slog.Int("count", len(paths)))
	return len(paths)
}

// registerFileResource registers one indexed file under a file:// URI
// relative to the project root.
func (s *Server) registerFileResource(relPath string) {
	desc := relPath
	if lang := scanner.DetectLanguage(relPath); lang != "" {
		desc = fmt.Sprintf("%s (%s)", relPath, lang)
	}

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(relPath),
			URI:         "file://" + relPath,
			Description: desc,
			MIMEType:    MimeTypeForPath(relPath),
		},
		s.makeFileHandler(relPath),
	)
}

// makeFileHandler creates a read handler bound to one file path.
func (s *Server) makeFileHandler(relPath string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readFileResource(ctx, relPath)
	}
}

// readFileResource reads an indexed file from disk. The path is
// re-validated on every read: the file can be removed from the index or
// from disk between registration and read.
func (s *Server) readFileResource(_ context.Context, relPath string) (*mcp.ReadResourceResult, error) {
	if !isSafeRelPath(relPath) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", relPath))
	}

	uri := "file://" + relPath
	if len(s.indexer.PathsUnder(relPath)) == 0 {
		return nil, NewResourceNotFoundError(uri)
	}

	fullPath := filepath.Join(s.rootPath, relPath)
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{
				Code:    ErrCodeFileNotFound,
				Message: fmt.Sprintf("file not found: %s", relPath),
			}
		}
		s.logger.Error("resource stat failed",
			slog.String("path", relPath),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("resource read failed",
			slog.String("path", relPath),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: MimeTypeForPath(relPath),
				Text:     string(content),
			},
		},
	}, nil
}

// isSafeRelPath rejects absolute paths and any form of traversal.
// Indexed paths are always root-relative, so anything else is hostile.
func isSafeRelPath(path string) bool {
	if path == "" {
		return false
	}
	if filepath.IsAbs(path) {
		return false
	}
	// Windows drive-letter paths are absolute even when IsAbs says no
	// on other platforms.
	if len(path) >= 2 && path[1] == ':' {
		return false
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return false
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}
