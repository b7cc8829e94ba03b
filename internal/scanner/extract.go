package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codequarry/quarry/internal/store"
)

// Declaration patterns, matched per line. Extraction recognizes top-level
// (or, for Python, indented) declarations and slices the file at each one.
var (
	goFuncRE = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`)
	goTypeRE = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)`)

	jsFuncRE      = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`)
	jsArrowRE     = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*=>`)
	jsClassRE     = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	tsInterfaceRE = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][\w$]*)`)

	pyFuncRE  = regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)`)
	pyClassRE = regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`)
)

// declMatcher inspects one line and reports a declaration starting on it.
type declMatcher func(line string) (store.ElementType, string, bool)

// Extract derives the searchable elements of one file. Recognized languages
// (Go, JavaScript, TypeScript, Python) are sliced at each declaration line:
// the chunk from a declaration to the next becomes one element, and any
// non-blank preamble becomes a "header" comment element. Unrecognized
// languages and files without declarations yield a single whole-file element
// named "content", so everything readable stays searchable. Duplicate names
// within a file get a "_L<line>" suffix. Blank files yield no elements.
// Extraction is deterministic and never fails.
func Extract(language string, content []byte) []store.SourceElement {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return []store.SourceElement{}
	}

	match := matcherFor(language)
	if match == nil {
		return []store.SourceElement{wholeFile(text)}
	}

	type decl struct {
		line int
		typ  store.ElementType
		name string
	}

	lines := strings.Split(text, "\n")
	var decls []decl
	for i, line := range lines {
		if typ, name, ok := match(line); ok {
			decls = append(decls, decl{line: i, typ: typ, name: name})
		}
	}
	if len(decls) == 0 {
		return []store.SourceElement{wholeFile(text)}
	}

	elements := make([]store.SourceElement, 0, len(decls)+1)
	seen := make(map[string]struct{}, len(decls)+1)

	if header := strings.Join(lines[:decls[0].line], "\n"); strings.TrimSpace(header) != "" {
		elements = append(elements, store.SourceElement{
			Type:    store.ElementComment,
			Name:    "header",
			Content: header,
		})
		seen["header"] = struct{}{}
	}

	for j, d := range decls {
		end := len(lines)
		if j+1 < len(decls) {
			end = decls[j+1].line
		}

		name := d.name
		if _, dup := seen[name]; dup {
			name = fmt.Sprintf("%s_L%d", name, d.line+1)
		}
		seen[name] = struct{}{}

		elements = append(elements, store.SourceElement{
			Type:    d.typ,
			Name:    name,
			Content: strings.Join(lines[d.line:end], "\n"),
		})
	}
	return elements
}

func matcherFor(language string) declMatcher {
	switch language {
	case "go":
		return goDecl
	case "javascript", "typescript":
		return jsDecl
	case "python":
		return pyDecl
	default:
		return nil
	}
}

func wholeFile(text string) store.SourceElement {
	return store.SourceElement{
		Type:    store.ElementComment,
		Name:    "content",
		Content: text,
	}
}

func goDecl(line string) (store.ElementType, string, bool) {
	if m := goFuncRE.FindStringSubmatch(line); m != nil {
		return store.ElementFunction, m[1], true
	}
	if m := goTypeRE.FindStringSubmatch(line); m != nil {
		if strings.Contains(line, " interface") {
			return store.ElementInterface, m[1], true
		}
		return store.ElementClass, m[1], true
	}
	return "", "", false
}

func jsDecl(line string) (store.ElementType, string, bool) {
	if m := tsInterfaceRE.FindStringSubmatch(line); m != nil {
		return store.ElementInterface, m[1], true
	}
	if m := jsClassRE.FindStringSubmatch(line); m != nil {
		return store.ElementClass, m[1], true
	}
	if m := jsFuncRE.FindStringSubmatch(line); m != nil {
		return store.ElementFunction, m[1], true
	}
	if m := jsArrowRE.FindStringSubmatch(line); m != nil {
		return store.ElementFunction, m[1], true
	}
	return "", "", false
}

func pyDecl(line string) (store.ElementType, string, bool) {
	if m := pyClassRE.FindStringSubmatch(line); m != nil {
		return store.ElementClass, m[1], true
	}
	if m := pyFuncRE.FindStringSubmatch(line); m != nil {
		return store.ElementFunction, m[1], true
	}
	return "", "", false
}
