package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/codequarry/quarry/internal/gitignore"
)

// binarySniffBytes is how much of a file the binary check reads.
const binarySniffBytes = 8 * 1024

// ignoredDirs are never descended into, independent of configuration.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".idea":        {},
	".vscode":      {},
	".quarry":      {},
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	".venv":        {},
	"dist":         {},
	"build":        {},
	"target":       {},
}

// defaultExcludeFiles are file patterns excluded on top of Options.
// Lockfiles and minified bundles carry no searchable structure.
var defaultExcludeFiles = []string{
	"*.min.js",
	"*.min.css",
	"*.map",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
}

// sensitiveFilePatterns are never indexed regardless of configuration, so
// credentials cannot leak into search results.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secret*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}

// Scanner walks a project root and streams indexable files. A Scanner is
// safe for concurrent use. When gitignore support is enabled, each Scan
// rebuilds the matcher from the .gitignore files it encounters, so edits
// to those files take effect on the next pass.
type Scanner struct {
	root             string
	excludes         []string
	maxFileSize      int64
	follow           bool
	respectGitignore bool

	// ignore holds the matcher from the last completed walk. ShouldIgnore
	// consults it so the watcher agrees with the most recent scan.
	ignore atomic.Pointer[gitignore.Matcher]
}

// New validates opts and creates a Scanner rooted at opts.Root.
func New(opts Options) (*Scanner, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize == 0 {
		maxFileSize = DefaultMaxFileSize
	}

	s := &Scanner{
		root:             absRoot,
		excludes:         append([]string(nil), opts.ExcludePatterns...),
		maxFileSize:      maxFileSize,
		follow:           opts.FollowSymlinks,
		respectGitignore: opts.RespectGitignore,
	}
	if s.respectGitignore {
		ig := gitignore.New()
		_ = ig.AddFromFile(filepath.Join(absRoot, ".gitignore"), "")
		s.ignore.Store(ig)
	}
	return s, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan streams every indexable file under the root. The channel closes when
// traversal finishes or ctx is cancelled. Unreadable entries are skipped;
// only traversal-level failures surface as ScanResult.Err.
func (s *Scanner) Scan(ctx context.Context) <-chan ScanResult {
	results := make(chan ScanResult, 64)

	// Each walk gets a fresh matcher so rules from deleted or edited
	// .gitignore files do not accumulate across scans. The root file is
	// loaded up front because the walk callback skips the root entry.
	var ig *gitignore.Matcher
	if s.respectGitignore {
		ig = gitignore.New()
		_ = ig.AddFromFile(filepath.Join(s.root, ".gitignore"), "")
	}

	go func() {
		defer close(results)

		err := filepath.WalkDir(s.root, func(absPath string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return nil
			}

			rel, err := filepath.Rel(s.root, absPath)
			if err != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if s.shouldIgnore(rel, true, ig) {
					return filepath.SkipDir
				}
				if ig != nil {
					_ = ig.AddFromFile(filepath.Join(absPath, ".gitignore"), rel)
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 && !s.follow {
				return nil
			}
			if s.shouldIgnore(rel, false, ig) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
				return nil
			}
			if isBinaryFile(absPath) {
				return nil
			}

			file := &FileInfo{
				Path:     rel,
				AbsPath:  absPath,
				Size:     info.Size(),
				ModTime:  info.ModTime(),
				Language: DetectLanguage(rel),
			}

			select {
			case results <- ScanResult{File: file}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if ig != nil && err == nil {
			s.ignore.Store(ig)
		}

		if err != nil && err != context.Canceled {
			select {
			case results <- ScanResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return results
}

// ShouldIgnore reports whether a root-relative path is excluded from
// indexing. Directories check the built-in ignore set and the configured
// patterns; files additionally check the sensitive and default exclusion
// lists; gitignore rules from the last completed scan apply to both. The
// watcher shares this predicate so watch and scan agree.
func (s *Scanner) ShouldIgnore(relPath string, isDir bool) bool {
	return s.shouldIgnore(relPath, isDir, s.ignore.Load())
}

// shouldIgnore is ShouldIgnore against an explicit gitignore matcher, which
// may be nil. Built-in and configured exclusions are checked first so a
// negated gitignore rule cannot re-include them.
func (s *Scanner) shouldIgnore(relPath string, isDir bool, ig *gitignore.Matcher) bool {
	relPath = filepath.ToSlash(relPath)
	base := path.Base(relPath)

	if isDir {
		if _, ok := ignoredDirs[base]; ok {
			return true
		}
		for _, pattern := range s.excludes {
			if matchPattern(relPath, base, pattern) {
				return true
			}
		}
		return ig != nil && ig.Match(relPath, true)
	}

	for _, part := range strings.Split(path.Dir(relPath), "/") {
		if _, ok := ignoredDirs[part]; ok {
			return true
		}
	}
	for _, pattern := range sensitiveFilePatterns {
		if matchPattern(relPath, base, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchPattern(relPath, base, pattern) {
			return true
		}
	}
	for _, pattern := range s.excludes {
		if matchPattern(relPath, base, pattern) {
			return true
		}
	}
	return ig != nil && ig.Match(relPath, false)
}

// matchPattern matches one exclusion pattern against a slash-separated
// root-relative path. Supported forms: "dir/**" (whole subtree), "**/name"
// (base name at any depth), and plain path.Match globs applied to both the
// base name and the full relative path.
func matchPattern(relPath, base, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}
	if strings.HasPrefix(pattern, "**/") {
		pattern = strings.TrimPrefix(pattern, "**/")
	}
	if ok, err := path.Match(pattern, base); err == nil && ok {
		return true
	}
	if ok, err := path.Match(pattern, relPath); err == nil && ok {
		return true
	}
	return false
}

// isBinaryFile sniffs for a null byte in the file's first 8 KiB.
func isBinaryFile(absPath string) bool {
	f, err := os.Open(absPath)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, binarySniffBytes)
	n, err := f.Read(buf)
	if n <= 0 || (err != nil && n == 0) {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}
