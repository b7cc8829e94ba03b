package store

import (
	"regexp"
	"sort"
	"strings"
)

// identPattern matches identifier-like words that begin with a lowercase
// letter. PascalCase names and ALL_CAPS constants intentionally do not
// qualify as keywords; their content still reaches the index through the
// embedding path.
var identPattern = regexp.MustCompile(`\b[a-z][a-zA-Z0-9]*\b`)

// DefaultStopWords are common English words and generic code keywords that
// make useless keywords. Vocabulary terms are never listed here.
var DefaultStopWords = []string{
	// English
	"the", "and", "for", "are", "but", "not", "you", "all", "any",
	"can", "had", "has", "have", "was", "were", "been", "being",
	"this", "that", "these", "those", "with", "from", "they", "them",
	"then", "than", "when", "where", "which", "while", "will", "would",
	"could", "should", "there", "their", "what", "into", "over",
	"under", "only", "also", "just", "like", "some", "such", "each",
	"other", "more", "most", "must", "may", "might", "about", "after",
	"before", "between", "through", "during", "above", "below",
	"again", "once", "here", "both", "does", "doing", "done",
	// Generic code keywords
	"var", "let", "const", "func", "function", "def", "class",
	"return", "else", "elif", "case", "switch", "break", "continue",
	"package", "public", "private", "protected", "static", "final",
	"void", "null", "nil", "true", "false", "new", "delete", "self",
	"super", "extends", "implements", "throws", "throw", "try",
	"catch", "finally", "raise", "pass", "yield", "lambda", "import",
}

// TechnicalVocabulary is the curated set of technical terms recognized by
// substring match against the lowercased content, independent of how the
// content tokenizes. It deliberately includes terms that double as language
// keywords ("interface", "export") so they stay searchable.
var TechnicalVocabulary = []string{
	"async", "await", "auth", "authentication", "authorization",
	"buffer", "cache", "callback", "channel", "closure", "component",
	"config", "container", "controller", "database", "debug",
	"decrypt", "deserialize", "encrypt", "endpoint", "export",
	"fixture", "generic", "handler", "hash", "interface", "logger",
	"login", "logout", "metric", "middleware", "migration", "mock",
	"module", "mutex", "parser", "password", "promise", "protocol",
	"query", "queue", "request", "response", "retry", "router",
	"runtime", "sanitize", "schema", "serialize", "service",
	"session", "socket", "stream", "thread", "timeout", "token",
	"transaction", "validate", "worker",
}

var stopWordSet = BuildStopWordMap(DefaultStopWords)

// BuildStopWordMap converts a stopword slice to a set for O(1) lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[w] = struct{}{}
	}
	return set
}

// ExtractKeywords derives the searchable keyword set for content. It is the
// union of (a) identifier-like words of length > 2 that start with a
// lowercase letter, lowercased and minus stopwords, and (b) every
// TechnicalVocabulary term contained in the lowercased content. The result
// is sorted and duplicate-free; empty content yields an empty slice.
// Extraction is deterministic and never fails.
func ExtractKeywords(content string) []string {
	if content == "" {
		return []string{}
	}

	seen := make(map[string]struct{})
	for _, match := range identPattern.FindAllString(content, -1) {
		if len(match) <= 2 {
			continue
		}
		word := strings.ToLower(match)
		if _, stop := stopWordSet[word]; stop {
			continue
		}
		seen[word] = struct{}{}
	}

	lower := strings.ToLower(content)
	for _, term := range TechnicalVocabulary {
		if strings.Contains(lower, term) {
			seen[term] = struct{}{}
		}
	}

	keywords := make([]string, 0, len(seen))
	for kw := range seen {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	return keywords
}
