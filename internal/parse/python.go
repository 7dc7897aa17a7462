package parse

import "strings"

// pythonExtractor handles .py files. Methods are emitted with names
// qualified by their enclosing class; the flat definition list keeps
// bare names so calls can resolve against them.
type pythonExtractor struct{}

func (e *pythonExtractor) Language() string { return "python" }

func (e *pythonExtractor) Extract(root *Node, source []byte) *Extraction {
	out := &Extraction{}
	e.walk(root, source, out, "")
	return out
}

func (e *pythonExtractor) walk(n *Node, source []byte, out *Extraction, parentClass string) {
	switch n.Type {
	case "function_definition":
		name := identifierName(n, source)
		if name != "" {
			out.Definitions = append(out.Definitions, name)
			sym := Symbol{
				Name:      name,
				Kind:      KindFunction,
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
				Code:      n.Content(source),
				Doc:       pythonDocstring(n, source),
			}
			if parentClass != "" {
				sym.Name = parentClass + "." + name
				sym.Kind = KindMethod
			}
			out.Symbols = append(out.Symbols, sym)
		}

	case "class_definition":
		name := identifierName(n, source)
		if name != "" {
			out.Definitions = append(out.Definitions, name)
			out.Symbols = append(out.Symbols, Symbol{
				Name:      name,
				Kind:      KindClass,
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
				Code:      n.Content(source),
				Doc:       pythonDocstring(n, source),
			})
			// Methods inside the class body qualify under its name.
			for _, child := range n.Children {
				e.walk(child, source, out, name)
			}
			return
		}

	case "call":
		if len(n.Children) > 0 {
			fn := n.Children[0]
			switch fn.Type {
			case "identifier":
				out.Calls = append(out.Calls, fn.Content(source))
			case "attribute":
				// obj.method() records "method".
				if attr := fn.LastChildOfType("identifier"); attr != nil {
					out.Calls = append(out.Calls, attr.Content(source))
				}
			}
		}
	}

	for _, child := range n.Children {
		e.walk(child, source, out, parentClass)
	}
}

// pythonDocstring returns the leading docstring of a function or
// class body, with quotes stripped.
func pythonDocstring(n *Node, source []byte) string {
	block := n.FirstChildOfType("block")
	if block == nil {
		return ""
	}
	stmt := block.FirstChildOfType("expression_statement")
	if stmt == nil || len(block.Children) == 0 || block.Children[0] != stmt {
		return ""
	}
	str := stmt.FirstChildOfType("string")
	if str == nil {
		return ""
	}

	doc := str.Content(source)
	switch {
	case strings.HasPrefix(doc, `"""`) || strings.HasPrefix(doc, "'''"):
		if len(doc) >= 6 {
			doc = doc[3 : len(doc)-3]
		}
	case strings.HasPrefix(doc, `"`) || strings.HasPrefix(doc, "'"):
		if len(doc) >= 2 {
			doc = doc[1 : len(doc)-1]
		}
	}
	return strings.TrimSpace(doc)
}

// identifierName returns the first identifier child's text.
func identifierName(n *Node, source []byte) string {
	if id := n.FirstChildOfType("identifier"); id != nil {
		return id.Content(source)
	}
	return ""
}
