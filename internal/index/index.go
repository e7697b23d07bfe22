// Package index holds the in-memory map that answers every read.
//
// Keys and values are stored exactly as given: ciphertext in secure mode,
// plain text otherwise. Index has no locking; the engine serializes access.
package index

// Index maps stored keys to stored values.
type Index struct {
	entries map[string]string
}

// New creates an empty index, sized for hint entries
func New(hint int) *Index {
	return &Index{entries: make(map[string]string, hint)}
}

// Get returns the value for key and whether it was present
func (i *Index) Get(key string) (string, bool) {
	v, ok := i.entries[key]
	return v, ok
}

// Set stores value under key and reports whether the key already existed
func (i *Index) Set(key, value string) bool {
	_, existed := i.entries[key]
	i.entries[key] = value
	return existed
}

// Delete removes key and reports whether it was present
func (i *Index) Delete(key string) bool {
	if _, ok := i.entries[key]; !ok {
		return false
	}
	delete(i.entries, key)
	return true
}

// Len returns the number of entries
func (i *Index) Len() int {
	return len(i.entries)
}
