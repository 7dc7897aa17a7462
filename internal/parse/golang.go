package parse

import "strings"

// goExtractor handles .go files.
type goExtractor struct{}

func (e *goExtractor) Language() string { return "go" }

func (e *goExtractor) Extract(root *Node, source []byte) *Extraction {
	out := &Extraction{}

	root.Walk(func(n *Node) bool {
		switch n.Type {
		case "function_declaration":
			name := identifierName(n, source)
			if name != "" {
				out.Definitions = append(out.Definitions, name)
				out.Symbols = append(out.Symbols, goSymbol(n, source, name, KindFunction))
			}

		case "method_declaration":
			// Method names sit in a field_identifier, not an
			// identifier.
			if id := n.FirstChildOfType("field_identifier"); id != nil {
				name := id.Content(source)
				out.Definitions = append(out.Definitions, name)
				out.Symbols = append(out.Symbols, goSymbol(n, source, name, KindMethod))
			}

		case "type_declaration":
			if spec := n.FirstChildOfType("type_spec"); spec != nil {
				if id := spec.FirstChildOfType("type_identifier"); id != nil {
					name := id.Content(source)
					out.Definitions = append(out.Definitions, name)
					out.Symbols = append(out.Symbols, goSymbol(n, source, name, KindType))
				}
			}

		case "call_expression":
			if len(n.Children) > 0 {
				fn := n.Children[0]
				switch fn.Type {
				case "identifier":
					out.Calls = append(out.Calls, fn.Content(source))
				case "selector_expression":
					// pkg.Fn() or recv.Method() records the selector.
					if sel := fn.LastChildOfType("field_identifier"); sel != nil {
						out.Calls = append(out.Calls, sel.Content(source))
					}
				}
			}
		}
		return true
	})

	return out
}

func goSymbol(n *Node, source []byte, name string, kind SymbolKind) Symbol {
	return Symbol{
		Name:      name,
		Kind:      kind,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		Code:      n.Content(source),
		Doc:       lineCommentBefore(n, source),
	}
}

// lineCommentBefore returns the text of a // comment on the line
// directly above the node, if present.
func lineCommentBefore(n *Node, source []byte) string {
	if n.StartPoint.Row == 0 {
		return ""
	}

	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	prevEnd := lineStart - 1
	prevStart := prevEnd
	for prevStart > 0 && source[prevStart-1] != '\n' {
		prevStart--
	}

	prev := strings.TrimSpace(string(source[prevStart:prevEnd]))
	if strings.HasPrefix(prev, "//") {
		return strings.TrimSpace(strings.TrimPrefix(prev, "//"))
	}
	return ""
}
