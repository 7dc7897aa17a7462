package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p := NewParser(NewRegistry())
	t.Cleanup(p.Close)
	return p
}

func findSymbol(t *testing.T, symbols []Symbol, name string) Symbol {
	t.Helper()
	for _, s := range symbols {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, symbols)
	return Symbol{}
}

func TestAnalyze_Python(t *testing.T) {
	source := []byte(`"""Module docstring."""


def helper(x):
    """Add one to x."""
    return advance(x)


class Greeter:
    """Greets people."""

    def greet(self, name):
        return format_name(name)
`)

	p := newTestParser(t)
	fa, err := p.Analyze(context.Background(), "pkg/demo.py", source)
	require.NoError(t, err)

	assert.Equal(t, "pkg/demo.py", fa.Path)
	assert.Equal(t, "python", fa.Language)
	assert.Equal(t, []string{"Greeter", "greet", "helper"}, fa.Definitions)
	assert.Equal(t, []string{"advance", "format_name"}, fa.Calls)

	helper := findSymbol(t, fa.Symbols, "helper")
	assert.Equal(t, KindFunction, helper.Kind)
	assert.Equal(t, "Add one to x.", helper.Doc)
	assert.Equal(t, 4, helper.StartLine)
	assert.Contains(t, helper.Code, "return advance(x)")

	greeter := findSymbol(t, fa.Symbols, "Greeter")
	assert.Equal(t, KindClass, greeter.Kind)
	assert.Equal(t, "Greets people.", greeter.Doc)

	greet := findSymbol(t, fa.Symbols, "Greeter.greet")
	assert.Equal(t, KindMethod, greet.Kind)
}

func TestAnalyze_PythonAttributeCall(t *testing.T) {
	source := []byte("def run():\n    client.send(payload)\n")

	p := newTestParser(t)
	fa, err := p.Analyze(context.Background(), "run.py", source)
	require.NoError(t, err)

	// obj.method() records the method name.
	assert.Equal(t, []string{"send"}, fa.Calls)
}

func TestAnalyze_Go(t *testing.T) {
	source := []byte(`package demo

import "fmt"

// Add returns the sum of a and b.
func Add(a, b int) int { return a + b }

type Counter struct{ n int }

func (c *Counter) Inc() { c.n++ }

func report(c *Counter) {
	fmt.Println(Add(c.n, 1))
}
`)

	p := newTestParser(t)
	fa, err := p.Analyze(context.Background(), "demo/demo.go", source)
	require.NoError(t, err)

	assert.Equal(t, "go", fa.Language)
	assert.Equal(t, []string{"Add", "Counter", "Inc", "report"}, fa.Definitions)
	assert.Contains(t, fa.Calls, "Add")
	assert.Contains(t, fa.Calls, "Println")

	add := findSymbol(t, fa.Symbols, "Add")
	assert.Equal(t, KindFunction, add.Kind)
	assert.Equal(t, "Add returns the sum of a and b.", add.Doc)

	inc := findSymbol(t, fa.Symbols, "Inc")
	assert.Equal(t, KindMethod, inc.Kind)

	counter := findSymbol(t, fa.Symbols, "Counter")
	assert.Equal(t, KindType, counter.Kind)
}

func TestAnalyze_JavaScript(t *testing.T) {
	source := []byte(`// Formats a display name.
function formatName(user) {
  return user.first + " " + user.last;
}

const handler = (req) => {
  return formatName(req.user);
};

class Session {
  close() {
    this.socket.destroy();
  }
}
`)

	p := newTestParser(t)
	fa, err := p.Analyze(context.Background(), "src/app.js", source)
	require.NoError(t, err)

	assert.Equal(t, "javascript", fa.Language)
	assert.Equal(t, []string{"Session", "close", "formatName", "handler"}, fa.Definitions)
	assert.Contains(t, fa.Calls, "formatName")
	assert.Contains(t, fa.Calls, "destroy")

	format := findSymbol(t, fa.Symbols, "formatName")
	assert.Equal(t, "Formats a display name.", format.Doc)

	handler := findSymbol(t, fa.Symbols, "handler")
	assert.Equal(t, KindFunction, handler.Kind)
}

func TestAnalyze_TypeScript(t *testing.T) {
	source := []byte(`function loadConfig(path: string): Config {
  return parseYaml(readFile(path));
}
`)

	p := newTestParser(t)
	fa, err := p.Analyze(context.Background(), "src/config.ts", source)
	require.NoError(t, err)

	assert.Equal(t, "typescript", fa.Language)
	assert.Equal(t, []string{"loadConfig"}, fa.Definitions)
	assert.Equal(t, []string{"parseYaml", "readFile"}, fa.Calls)
}

func TestAnalyze_UnsupportedExtension(t *testing.T) {
	p := newTestParser(t)
	_, err := p.Analyze(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.True(t, synerr.HasCode(err, synerr.ErrCodeParseFailure))
}

func TestAnalyzeFile_MissingFile(t *testing.T) {
	p := newTestParser(t)
	_, err := p.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "gone.py"))
	require.Error(t, err)
	assert.True(t, synerr.HasCode(err, synerr.ErrCodeParseFailure))
}

func TestAnalyzeFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.py")
	require.NoError(t, os.WriteFile(path, []byte("def util():\n    pass\n"), 0o644))

	p := newTestParser(t)
	fa, err := p.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"util"}, fa.Definitions)
}

func TestRegistry_Extensions(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Supports(".py"))
	assert.True(t, r.Supports("PY"))
	assert.False(t, r.Supports(".rb"))

	lang, ok := r.LanguageForExtension(".tsx")
	require.True(t, ok)
	assert.Equal(t, "tsx", lang)

	assert.Contains(t, r.SupportedExtensions(), ".go")
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, sortedUnique([]string{"b", "a", "b", ""}))
	assert.Equal(t, []string{}, sortedUnique(nil))
}
