// Package parse turns source files into symbol-level analyses using
// tree-sitter. One Extractor implementation exists per language
// family, selected through a registry keyed on file extension.
package parse

// SymbolKind classifies an extracted symbol.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
	KindType     SymbolKind = "type"
)

// Symbol is one extracted definition with its body text.
// Methods carry a qualified name (Class.method) while the flat
// definition list keeps the bare name for call resolution.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	StartLine int // 1-indexed
	EndLine   int
	Code      string
	Doc       string
}

// FileAnalysis is the complete extraction result for one file.
type FileAnalysis struct {
	Path     string
	Language string
	// Definitions are the defined names, sorted and deduplicated.
	Definitions []string
	// Calls are the called names, sorted and deduplicated.
	Calls   []string
	Symbols []Symbol
}

// Point is a row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic view of a tree-sitter AST node.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
}

// Content returns the source text covered by the node.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FirstChildOfType returns the first direct child with the given type.
func (n *Node) FirstChildOfType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// LastChildOfType returns the last direct child with the given type.
func (n *Node) LastChildOfType(nodeType string) *Node {
	for i := len(n.Children) - 1; i >= 0; i-- {
		if n.Children[i].Type == nodeType {
			return n.Children[i]
		}
	}
	return nil
}

// Walk traverses the subtree depth-first. Returning false from fn
// stops descent into the current node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
