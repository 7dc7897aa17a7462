// Package ui provides terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Printer writes styled output to a terminal, degrading to plain text
// when the destination is not a TTY or NO_COLOR is set.
type Printer struct {
	w      io.Writer
	styles Styles
}

// New creates a Printer for the given writer, detecting color support.
func New(w io.Writer) *Printer {
	return &Printer{w: w, styles: GetStyles(!colorEnabled(w))}
}

// NewPlain creates a Printer that never emits color codes.
func NewPlain(w io.Writer) *Printer {
	return &Printer{w: w, styles: NoColorStyles()}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styles exposes the active style set for custom rendering.
func (p *Printer) Styles() Styles {
	return p.styles
}

// Printf writes unstyled formatted text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Header writes a bold section heading.
func (p *Printer) Header(text string) {
	fmt.Fprintln(p.w, p.styles.Header.Render(text))
}

// Success writes an accented line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf writes an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Field writes an aligned "label: value" row.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.styles.Label.Render(fmt.Sprintf("%-18s", label+":")), value)
}

// Path renders a file path with the path style.
func (p *Printer) Path(path string) string {
	return p.styles.Path.Render(path)
}

// Score renders a ranking score with the score style.
func (p *Printer) Score(score float64) string {
	return p.styles.Score.Render(fmt.Sprintf("%.3f", score))
}

// Dim renders secondary text.
func (p *Printer) Dim(text string) string {
	return p.styles.Dim.Render(text)
}
