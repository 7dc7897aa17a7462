package parse

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Extractor pulls definitions, calls and symbol records out of a
// parsed source tree for one language family.
type Extractor interface {
	// Language is the canonical language name recorded on file nodes.
	Language() string
	// Extract walks the tree and returns the raw (unsorted,
	// possibly duplicated) extraction for the file.
	Extract(root *Node, source []byte) *Extraction
}

// Extraction is the raw per-file output of an Extractor before
// normalization.
type Extraction struct {
	Definitions []string
	Calls       []string
	Symbols     []Symbol
}

// languageEntry pairs a tree-sitter grammar with its extractor.
type languageEntry struct {
	language  string
	tsLang    *sitter.Language
	extractor Extractor
}

// Registry maps file extensions to language grammars and extractors.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]*languageEntry
}

// NewRegistry creates a registry with the default language set:
// Go, Python, JavaScript (including JSX) and TypeScript (including
// TSX).
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]*languageEntry)}

	r.register([]string{".go"}, "go", golang.GetLanguage(), &goExtractor{})
	r.register([]string{".py"}, "python", python.GetLanguage(), &pythonExtractor{})
	r.register([]string{".js", ".jsx", ".mjs"}, "javascript", javascript.GetLanguage(), &ecmascriptExtractor{language: "javascript"})
	r.register([]string{".ts"}, "typescript", typescript.GetLanguage(), &ecmascriptExtractor{language: "typescript"})
	r.register([]string{".tsx"}, "tsx", tsx.GetLanguage(), &ecmascriptExtractor{language: "tsx"})

	return r
}

func (r *Registry) register(exts []string, language string, tsLang *sitter.Language, ex Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &languageEntry{language: language, tsLang: tsLang, extractor: ex}
	for _, ext := range exts {
		r.byExt[ext] = entry
	}
}

// lookup returns the entry for a file extension.
func (r *Registry) lookup(ext string) (*languageEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	entry, ok := r.byExt[ext]
	return entry, ok
}

// Supports reports whether files with the extension can be analyzed.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.lookup(ext)
	return ok
}

// LanguageForExtension returns the canonical language name for an
// extension.
func (r *Registry) LanguageForExtension(ext string) (string, bool) {
	entry, ok := r.lookup(ext)
	if !ok {
		return "", false
	}
	return entry.language, true
}

// SupportedExtensions returns all registered extensions.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
