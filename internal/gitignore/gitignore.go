// Package gitignore matches root-relative paths against .gitignore
// pattern lists, following the syntax at git-scm.com/docs/gitignore:
// the last matching pattern wins, "!" re-includes, a trailing slash
// restricts the pattern to directories, and a leading or internal
// slash anchors it to the directory its pattern file lives in.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled patterns from one or more .gitignore files.
// Adding and matching may run concurrently: scans append nested pattern
// files while the watcher consults the same matcher.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// rule is one compiled pattern. base scopes rules from nested pattern
// files to the subtree they live in.
type rule struct {
	re       *regexp.Regexp
	base     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// New creates an empty Matcher. With no rules nothing matches.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern compiles one root-scoped pattern line. Blank lines,
// comments, and patterns that fail to compile are dropped, so callers
// can feed raw .gitignore content line by line.
func (m *Matcher) AddPattern(pattern string) {
	m.add(pattern, "")
}

// AddFromFile loads every pattern in one .gitignore file. base is the
// root-relative directory the file lives in, "" for the project root;
// its patterns apply only beneath that directory.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gitignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.add(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read gitignore file: %w", err)
	}
	return nil
}

// Match reports whether the slash-separated root-relative path is
// ignored. Rules are applied in the order they were added and the last
// match decides, which is what lets "!" patterns re-include files.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (m *Matcher) add(line, base string) {
	// A trailing "\ " keeps its space; plain trailing whitespace goes.
	keepTrailingSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimSpace(line)
	if line == "" || (strings.HasPrefix(line, "#") && !strings.HasPrefix(line, `\#`)) {
		return
	}

	r := rule{base: base}
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		r.negate = true
		line = line[1:]
	}
	if keepTrailingSpace && strings.HasSuffix(line, `\`) {
		line = strings.TrimSuffix(line, `\`) + " "
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") && !strings.HasPrefix(line, "*") {
		// "doc/frotz" means "/doc/frotz", never "**/doc/frotz".
		r.anchored = true
	}

	re, err := regexp.Compile("^" + patternToRegex(line) + "$")
	if err != nil {
		return
	}
	r.re = re

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.base != "" {
		switch {
		case relPath == r.base:
			relPath = filepath.Base(relPath)
		case strings.HasPrefix(relPath, r.base+"/"):
			relPath = strings.TrimPrefix(relPath, r.base+"/")
		default:
			return false
		}
	}

	parts := strings.Split(relPath, "/")

	if r.anchored {
		if r.re.MatchString(relPath) {
			return !r.dirOnly || isDir
		}
		if r.dirOnly {
			// Everything inside a matched directory is ignored with it.
			for i := range parts[:len(parts)-1] {
				if r.re.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.re.MatchString(part) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	if r.re.MatchString(parts[len(parts)-1]) || r.re.MatchString(relPath) {
		return true
	}
	for _, part := range parts {
		if r.re.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates one gitignore glob into a regular
// expression fragment. "*" and "?" stop at slashes; "**" crosses them.
func patternToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			switch {
			case strings.HasPrefix(pattern[i:], "**/"):
				b.WriteString("(?:.*/)?")
				i += 3
			case strings.HasPrefix(pattern[i:], "**") && (i == 0 || pattern[i-1] == '/'):
				b.WriteString(".*")
				i += 2
			default:
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			if j := strings.IndexByte(pattern[i+1:], ']'); j >= 0 {
				b.WriteString(pattern[i : i+j+2])
				i += j + 2
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
