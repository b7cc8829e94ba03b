package store

import "sort"

// ElementStore holds the canonical CodeElement records and tracks which ids
// belong to which file, so a file's element set can be replaced wholesale.
//
// The structure is passive; the Indexer serializes access.
type ElementStore struct {
	byID   map[string]*CodeElement
	byFile map[string]map[string]struct{}
}

// NewElementStore creates an empty element store.
func NewElementStore() *ElementStore {
	return &ElementStore{
		byID:   make(map[string]*CodeElement),
		byFile: make(map[string]map[string]struct{}),
	}
}

// Put stores el, replacing any element with the same id. Callers must treat
// stored elements as immutable.
func (es *ElementStore) Put(el *CodeElement) {
	es.byID[el.ID] = el
	ids, ok := es.byFile[el.FilePath]
	if !ok {
		ids = make(map[string]struct{})
		es.byFile[el.FilePath] = ids
	}
	ids[el.ID] = struct{}{}
}

// Get returns the element for id.
func (es *ElementStore) Get(id string) (*CodeElement, bool) {
	el, ok := es.byID[id]
	return el, ok
}

// Remove deletes the element for id and its file membership. Unknown ids
// are no-ops.
func (es *ElementStore) Remove(id string) {
	el, ok := es.byID[id]
	if !ok {
		return
	}
	delete(es.byID, id)
	ids := es.byFile[el.FilePath]
	delete(ids, id)
	if len(ids) == 0 {
		delete(es.byFile, el.FilePath)
	}
}

// FileIDs returns the ids of all elements belonging to filePath, sorted.
// Unknown paths yield an empty slice.
func (es *ElementStore) FileIDs(filePath string) []string {
	set := es.byFile[filePath]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored elements.
func (es *ElementStore) Len() int {
	return len(es.byID)
}
