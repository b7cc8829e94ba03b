package store

import (
	"sort"
	"strings"
)

// FileRegistry maps each indexed file path to the content hash of its
// element set. An entry exists iff the file has been indexed at least once;
// the Indexer updates it in the same critical section as the file's element
// swap, so registry state and index state never diverge.
//
// The structure is passive; the Indexer serializes access.
type FileRegistry struct {
	hashes map[string]string
}

// NewFileRegistry creates an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{hashes: make(map[string]string)}
}

// Set records hash for path, replacing any previous value.
func (fr *FileRegistry) Set(path, hash string) {
	fr.hashes[path] = hash
}

// Hash returns the recorded hash for path.
func (fr *FileRegistry) Hash(path string) (string, bool) {
	h, ok := fr.hashes[path]
	return h, ok
}

// Delete removes the entry for path. Unknown paths are no-ops.
func (fr *FileRegistry) Delete(path string) {
	delete(fr.hashes, path)
}

// Paths returns every registered path, sorted.
func (fr *FileRegistry) Paths() []string {
	paths := make([]string, 0, len(fr.hashes))
	for p := range fr.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// PathsUnder returns every registered path equal to prefix or inside the
// directory prefix, sorted. Used to fan out directory removals.
func (fr *FileRegistry) PathsUnder(prefix string) []string {
	dir := strings.TrimSuffix(prefix, "/") + "/"
	paths := make([]string, 0, 4)
	for p := range fr.hashes {
		if p == prefix || strings.HasPrefix(p, dir) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of registered files.
func (fr *FileRegistry) Len() int {
	return len(fr.hashes)
}
