// Package store provides the core data structures of the search index:
// tokenization, keyword extraction, the inverted keyword index, the vector
// store, the element store, and the file registry.
//
// The structures in this package are passive: they do no locking of their
// own. The index.Indexer serializes all access behind a single
// reader-writer lock so that per-file updates stay atomic with respect to
// concurrent searches.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// ElementType classifies an indexed code element.
type ElementType string

const (
	// ElementFunction is a function or method.
	ElementFunction ElementType = "function"
	// ElementClass is a class, struct, or other named type.
	ElementClass ElementType = "class"
	// ElementInterface is an interface or trait.
	ElementInterface ElementType = "interface"
	// ElementComment is a standalone comment or documentation block.
	ElementComment ElementType = "comment"
)

// CodeElement is the unit of indexing: one named piece of a source file
// together with everything derived from its content.
type CodeElement struct {
	// ID is FilePath + ":" + Name. Globally unique within one index.
	ID string

	// FilePath is the source file the element came from.
	FilePath string

	// Type classifies the element.
	Type ElementType

	// Name is the element's symbolic name.
	Name string

	// Content is the raw text the keywords and embedding were derived from.
	Content string

	// Keywords is the sorted, duplicate-free keyword set. May be empty.
	Keywords []string

	// Embedding is the L2-normalized vector for Content. All-zero iff the
	// content yielded no tokens.
	Embedding []float32
}

// SourceElement is the caller-supplied description of one element of a
// file, before keywords and embedding are derived.
type SourceElement struct {
	Type    ElementType
	Name    string
	Content string
}

// IndexStats are the aggregate counters reported by the index.
type IndexStats struct {
	// TotalEmbeddings is the number of indexed elements.
	TotalEmbeddings int `json:"total_embeddings"`

	// TotalKeywords is the number of distinct keywords with postings.
	TotalKeywords int `json:"total_keywords"`

	// FilesIndexed is the number of files in the registry.
	FilesIndexed int `json:"files_indexed"`
}

// ElementID builds the canonical element id for a file path and name.
func ElementID(filePath, name string) string {
	return filePath + ":" + name
}

// HashElements computes the content hash for a file's element set: the
// hex-encoded SHA-256 over the canonicalized (name-sorted) records. The
// registry stores this digest to detect unchanged files cheaply. Callers
// must pass an already canonicalized slice; CanonicalizeElements does that.
func HashElements(elements []SourceElement) string {
	h := sha256.New()
	for _, el := range elements {
		h.Write([]byte(el.Type))
		h.Write([]byte{0})
		h.Write([]byte(el.Name))
		h.Write([]byte{0})
		h.Write([]byte(el.Content))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalizeElements sorts elements by name and collapses duplicate names
// to the last occurrence, matching the index's last-write-wins contract.
// The input slice is not modified.
func CanonicalizeElements(elements []SourceElement) []SourceElement {
	byName := make(map[string]SourceElement, len(elements))
	for _, el := range elements {
		byName[el.Name] = el
	}
	canon := make([]SourceElement, 0, len(byName))
	for _, el := range byName {
		canon = append(canon, el)
	}
	sort.Slice(canon, func(i, j int) bool { return canon[i].Name < canon[j].Name })
	return canon
}
