package parse

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// Parser analyzes source files. It wraps one tree-sitter parser and
// is not safe for concurrent use; each extraction worker owns its own
// instance.
type Parser struct {
	parser   *sitter.Parser
	registry *Registry
}

// NewParser creates a parser over the given language registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// AnalyzeFile reads and analyzes one file from disk.
func (p *Parser) AnalyzeFile(ctx context.Context, path string) (*FileAnalysis, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, synerr.ParseFailure(path, err)
	}
	return p.Analyze(ctx, path, source)
}

// Analyze parses source and extracts definitions, calls and symbols.
// Unsupported extensions and parser failures return a ParseFailure;
// the orchestrator logs and skips the file.
func (p *Parser) Analyze(ctx context.Context, path string, source []byte) (*FileAnalysis, error) {
	entry, ok := p.registry.lookup(filepath.Ext(path))
	if !ok {
		return nil, synerr.ParseFailure(path, nil).WithDetail("reason", "unsupported extension")
	}

	p.parser.SetLanguage(entry.tsLang)
	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, synerr.ParseFailure(path, err)
	}
	if tsTree == nil {
		return nil, synerr.ParseFailure(path, nil).WithDetail("reason", "nil tree")
	}
	defer tsTree.Close()

	root := convertNode(tsTree.RootNode())
	raw := entry.extractor.Extract(root, source)

	return &FileAnalysis{
		Path:        filepath.ToSlash(path),
		Language:    entry.language,
		Definitions: sortedUnique(raw.Definitions),
		Calls:       sortedUnique(raw.Calls),
		Symbols:     raw.Symbols,
	}, nil
}

// convertNode maps a tree-sitter node into the package's Node view.
func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}
	return node
}

func sortedUnique(names []string) []string {
	if len(names) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
