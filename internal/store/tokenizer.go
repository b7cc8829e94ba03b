package store

import (
	"iter"
	"strings"
	"unicode"
)

// minTokenLen is the shortest token worth keeping. One- and two-rune
// fragments carry almost no search signal and bloat the index.
const minTokenLen = 3

// Tokenize splits text into lowercase word tokens. A token is a maximal run
// of Unicode letters and digits; every other rune is a boundary, so
// punctuation, whitespace, and underscores all split. Tokens shorter than
// minTokenLen runes are dropped.
//
// The sequence is lazy and restartable: ranging over it a second time
// replays the tokens from the start. It never fails; empty or binary-ish
// input yields an empty sequence.
func Tokenize(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		runes := 0
		for i, r := range text {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				if start < 0 {
					start = i
					runes = 0
				}
				runes++
				continue
			}
			if start >= 0 {
				if runes >= minTokenLen && !yield(strings.ToLower(text[start:i])) {
					return
				}
				start = -1
			}
		}
		if start >= 0 && runes >= minTokenLen {
			yield(strings.ToLower(text[start:]))
		}
	}
}

// TokenizeAll eagerly collects the tokens of text. The result is never nil.
func TokenizeAll(text string) []string {
	tokens := make([]string, 0, 16)
	for tok := range Tokenize(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}
