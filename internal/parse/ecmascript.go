package parse

// ecmascriptExtractor handles JavaScript, TypeScript and their JSX
// variants, which share node type names across grammars.
type ecmascriptExtractor struct {
	language string
}

func (e *ecmascriptExtractor) Language() string { return e.language }

func (e *ecmascriptExtractor) Extract(root *Node, source []byte) *Extraction {
	out := &Extraction{}

	root.Walk(func(n *Node) bool {
		switch n.Type {
		case "function_declaration":
			name := identifierName(n, source)
			if name != "" {
				out.Definitions = append(out.Definitions, name)
				out.Symbols = append(out.Symbols, esSymbol(n, source, name, KindFunction))
			}

		case "method_definition":
			if id := n.FirstChildOfType("property_identifier"); id != nil {
				out.Definitions = append(out.Definitions, id.Content(source))
			}

		case "class_declaration":
			name := identifierName(n, source)
			if name != "" {
				out.Definitions = append(out.Definitions, name)
				out.Symbols = append(out.Symbols, esSymbol(n, source, name, KindClass))
			}

		case "lexical_declaration", "variable_declaration":
			// const handler = () => {} and friends.
			if sym, ok := variableFunction(n, source); ok {
				out.Definitions = append(out.Definitions, sym.Name)
				out.Symbols = append(out.Symbols, sym)
			}

		case "call_expression":
			if len(n.Children) > 0 {
				fn := n.Children[0]
				switch fn.Type {
				case "identifier":
					out.Calls = append(out.Calls, fn.Content(source))
				case "member_expression":
					// obj.method() records "method".
					if prop := fn.LastChildOfType("property_identifier"); prop != nil {
						out.Calls = append(out.Calls, prop.Content(source))
					}
				}
			}
		}
		return true
	})

	return out
}

// variableFunction recognizes a variable declaration whose value is an
// arrow function or function expression and reports it as a function
// symbol under the variable's name.
func variableFunction(n *Node, source []byte) (Symbol, bool) {
	for _, child := range n.Children {
		if child.Type != "variable_declarator" {
			continue
		}
		var name string
		var hasFunction bool
		for _, gc := range child.Children {
			switch gc.Type {
			case "identifier":
				name = gc.Content(source)
			case "arrow_function", "function", "function_expression":
				hasFunction = true
			}
		}
		if name != "" && hasFunction {
			return esSymbol(n, source, name, KindFunction), true
		}
	}
	return Symbol{}, false
}

func esSymbol(n *Node, source []byte, name string, kind SymbolKind) Symbol {
	return Symbol{
		Name:      name,
		Kind:      kind,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		Code:      n.Content(source),
		Doc:       lineCommentBefore(n, source),
	}
}
