package store

// Document ID construction. IDs are stable across indexing passes so
// an upsert for the same file or symbol replaces the previous entry.

// FileID returns the document ID for a whole-file document.
func FileID(path string) string {
	return "file:" + path
}

// SymbolID returns the document ID for a single symbol.
func SymbolID(path, name string) string {
	return "symbol:" + path + ":" + name
}
