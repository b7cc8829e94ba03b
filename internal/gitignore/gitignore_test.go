package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Pattern matching
// ============================================================

func TestMatcher_Match_SimplePatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "exact filename match", pattern: "foo.txt", path: "foo.txt", expected: true},
		{name: "exact filename no match", pattern: "foo.txt", path: "bar.txt", expected: false},
		{name: "filename in subdir", pattern: "foo.txt", path: "src/foo.txt", expected: true},
		{name: "filename deep nested", pattern: "foo.txt", path: "a/b/c/foo.txt", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_WildcardPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "*.log matches .log", pattern: "*.log", path: "error.log", expected: true},
		{name: "*.log matches deep .log", pattern: "*.log", path: "logs/error.log", expected: true},
		{name: "*.log no match .txt", pattern: "*.log", path: "error.txt", expected: false},

		{name: "test* matches testfile", pattern: "test*", path: "testfile.go", expected: true},
		{name: "test* matches test_util", pattern: "test*", path: "test_util.go", expected: true},
		{name: "test* no match production", pattern: "test*", path: "production.go", expected: false},

		{name: "file?.txt matches file1.txt", pattern: "file?.txt", path: "file1.txt", expected: true},
		{name: "file?.txt matches fileA.txt", pattern: "file?.txt", path: "fileA.txt", expected: true},
		{name: "file?.txt no match file12.txt", pattern: "file?.txt", path: "file12.txt", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_DoubleStarPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "**/node_modules at root", pattern: "**/node_modules", path: "node_modules", isDir: true, expected: true},
		{name: "**/node_modules nested", pattern: "**/node_modules", path: "packages/foo/node_modules", isDir: true, expected: true},
		{name: "**/test file at root", pattern: "**/test", path: "test", expected: true},
		{name: "**/test file nested", pattern: "**/test", path: "foo/bar/test", expected: true},

		{name: "logs/** matches file inside", pattern: "logs/**", path: "logs/error.log", expected: true},
		{name: "logs/** matches nested", pattern: "logs/**", path: "logs/2024/01/error.log", expected: true},
		{name: "logs/** no match outside", pattern: "logs/**", path: "src/logs/error.log", expected: false},

		{name: "**/*.log at root", pattern: "**/*.log", path: "error.log", expected: true},
		{name: "**/*.log deep nested", pattern: "**/*.log", path: "a/b/c/d/error.log", expected: true},
		{name: "**/*.log no match .txt", pattern: "**/*.log", path: "error.txt", expected: false},

		{name: "a/**/b direct", pattern: "a/**/b", path: "a/b", expected: true},
		{name: "a/**/b one level", pattern: "a/**/b", path: "a/x/b", expected: true},
		{name: "a/**/b two levels", pattern: "a/**/b", path: "a/x/y/b", expected: true},
		{name: "a/**/b no match wrong prefix", pattern: "a/**/b", path: "c/x/b", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_AnchoredPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "/build at root", pattern: "/build", path: "build", isDir: true, expected: true},
		{name: "/build not nested", pattern: "/build", path: "src/build", isDir: true, expected: false},
		{name: "/temp/ at root dir", pattern: "/temp/", path: "temp", isDir: true, expected: true},
		{name: "/temp/ nested", pattern: "/temp/", path: "src/temp", isDir: true, expected: false},
		{name: "/temp/ contents at root", pattern: "/temp/", path: "temp/root.go", expected: true},
		{name: "/temp/ contents nested", pattern: "/temp/", path: "src/temp/nested.go", expected: false},
		{name: "/config.json at root", pattern: "/config.json", path: "config.json", expected: true},
		{name: "/config.json nested", pattern: "/config.json", path: "src/config.json", expected: false},

		// An internal slash anchors the pattern even without a leading one.
		{name: "src/temp/ contents", pattern: "src/temp/", path: "src/temp/cache.go", expected: true},
		{name: "src/temp/ directory", pattern: "src/temp/", path: "src/temp", isDir: true, expected: true},
		{name: "src/temp/ elsewhere", pattern: "src/temp/", path: "other/temp/file.go", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_DirectoryPatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "build/ matches directory", pattern: "build/", path: "build", isDir: true, expected: true},
		{name: "build/ not file", pattern: "build/", path: "build", expected: false},
		{name: "logs/ matches nested dir", pattern: "logs/", path: "src/logs", isDir: true, expected: true},
		{name: "logs/ not nested file", pattern: "logs/", path: "src/logs", expected: false},

		{name: "build matches dir", pattern: "build", path: "build", isDir: true, expected: true},
		{name: "build matches file", pattern: "build", path: "build", expected: true},

		{name: "temp*/ matches temp1 dir", pattern: "temp*/", path: "temp1", isDir: true, expected: true},
		{name: "temp*/ not temp1 file", pattern: "temp*/", path: "temp1", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

// ============================================================
// Negation
// ============================================================

func TestMatcher_Match_Negation(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		expected bool
	}{
		{
			name:     "negation overrides previous match",
			patterns: []string{"*.log", "!important.log"},
			path:     "important.log",
			expected: false,
		},
		{
			name:     "negation leaves other matches alone",
			patterns: []string{"*.log", "!important.log"},
			path:     "debug.log",
			expected: true,
		},
		{
			name:     "multiple negations",
			patterns: []string{"*", "!*.go", "!*.md"},
			path:     "main.go",
			expected: false,
		},
		{
			name:     "negation for directory",
			patterns: []string{"temp/", "!temp/important/"},
			path:     "temp/important",
			isDir:    true,
			expected: false,
		},
		{
			name:     "re-ignore after negation",
			patterns: []string{"*.log", "!important.log", "really_important.log"},
			path:     "really_important.log",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			for _, p := range tt.patterns {
				m.AddPattern(p)
			}
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

// ============================================================
// Parsing edge cases
// ============================================================

func TestMatcher_AddPattern_SkipsNonPatterns(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectRules int
	}{
		{name: "empty line", input: "", expectRules: 0},
		{name: "whitespace only", input: "   ", expectRules: 0},
		{name: "comment", input: "# this is a comment", expectRules: 0},
		{name: "valid pattern", input: "*.log", expectRules: 1},
		{name: "pattern with trailing space", input: "*.log  ", expectRules: 1},
		{name: "pattern with leading space", input: "  *.log", expectRules: 1},
		{name: "unclosed character class falls back to literal", input: "[broken", expectRules: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.input)
			assert.Len(t, m.rules, tt.expectRules)
		})
	}
}

func TestMatcher_Match_EscapedHash(t *testing.T) {
	m := New()
	m.AddPattern(`\#important`)

	assert.True(t, m.Match("#important", false))
	assert.False(t, m.Match("important", false))
}

func TestMatcher_Match_EscapedExclamation(t *testing.T) {
	// A leading "\!" is a literal, not a negation.
	m := New()
	m.AddPattern(`\!important`)

	assert.True(t, m.Match("!important", false))
}

func TestMatcher_Match_EscapedTrailingSpace(t *testing.T) {
	m := New()
	m.AddPattern(`file\ `)

	assert.True(t, m.Match("file ", false))
	assert.False(t, m.Match("file", false))
}

func TestMatcher_Match_InvalidClassNeverPanics(t *testing.T) {
	m := New()
	m.AddPattern("[]")
	m.AddPattern("valid.txt")

	// The broken pattern is skipped; the valid one still works.
	assert.False(t, m.Match("anything", false))
	assert.True(t, m.Match("valid.txt", false))
}

// ============================================================
// Nested pattern files
// ============================================================

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := `# Dependencies
*.log
!important.log

# Build
build/
/temp/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.Len(t, m.rules, 4, "Comments and blank lines are skipped")
	assert.True(t, m.Match("error.log", false))
	assert.False(t, m.Match("important.log", false))
	assert.True(t, m.Match("build", true))
	assert.True(t, m.Match("temp", true))
	assert.False(t, m.Match("src/temp", true))
}

func TestMatcher_AddFromFile_Missing(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), ".gitignore"), "")
	assert.Error(t, err)
}

func TestMatcher_AddFromFile_BaseScopesRules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	path := filepath.Join(dir, "src", ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("*.generated.go\ntemp/\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, "src"))

	// Rules apply beneath src/ only.
	assert.True(t, m.Match("src/code.generated.go", false))
	assert.True(t, m.Match("src/temp", true))
	assert.False(t, m.Match("code.generated.go", false))
	assert.False(t, m.Match("temp", true))
}

// ============================================================
// Concurrency
// ============================================================

func TestMatcher_ConcurrentAddAndMatch(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("temp/")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Match("error.log", false)
				_ = m.Match("temp", true)
				_ = m.Match("main.go", false)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.AddPattern("*.txt")
			}
		}()
	}
	wg.Wait()
}

// ============================================================
// Whole-file scenarios
// ============================================================

func TestMatcher_Match_TypicalProjectIgnoreFile(t *testing.T) {
	m := New()
	for _, p := range []string{
		"# Dependencies",
		"node_modules/",
		"vendor/",
		"",
		"# Build outputs",
		"dist/",
		"*.min.js",
		"",
		"# Logs",
		"*.log",
		"logs/",
		"!important.log",
		"",
		"# Project specific",
		"/config.local.json",
		"**/temp/",
		"**/*.generated.go",
	} {
		m.AddPattern(p)
	}

	assert.True(t, m.Match("node_modules", true))
	assert.True(t, m.Match("node_modules/lodash/index.js", false))
	assert.True(t, m.Match("dist/bundle.js", false))
	assert.True(t, m.Match("app.min.js", false))
	assert.True(t, m.Match("error.log", false))
	assert.False(t, m.Match("important.log", false))
	assert.True(t, m.Match("config.local.json", false))
	assert.False(t, m.Match("src/config.local.json", false))
	assert.True(t, m.Match("src/temp", true))
	assert.True(t, m.Match("pkg/models/user.generated.go", false))

	assert.False(t, m.Match("main.go", false))
	assert.False(t, m.Match("README.md", false))
	assert.False(t, m.Match("package.json", false))
}

func TestMatcher_Match_GitDocumentationExamples(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{name: "hello.* matches hello.txt", pattern: "hello.*", path: "hello.txt", expected: true},
		{name: "foo/ matches foo directory", pattern: "foo/", path: "foo", isDir: true, expected: true},
		{name: "foo/ does not match foo file", pattern: "foo/", path: "foo", expected: false},
		{name: "doc/frotz/ matches only doc/frotz", pattern: "doc/frotz/", path: "doc/frotz", isDir: true, expected: true},
		{name: "doc/frotz/ not a/doc/frotz", pattern: "doc/frotz/", path: "a/doc/frotz", isDir: true, expected: false},
		{name: "frotz/ matches frotz anywhere", pattern: "frotz/", path: "a/b/frotz", isDir: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir), "path: %s, isDir: %v", tt.path, tt.isDir)
		})
	}
}
