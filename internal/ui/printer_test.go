package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf)

	p.Header("Index Status")
	p.Field("documents", 42)
	p.Success("done in %s", "1.2s")
	p.Warnf("%d files skipped", 3)

	out := buf.String()
	assert.Contains(t, out, "Index Status")
	assert.Contains(t, out, "documents:")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "done in 1.2s")
	assert.Contains(t, out, "3 files skipped")
	assert.NotContains(t, out, "\x1b[", "plain printer must not emit escape codes")
}

func TestPrinter_NonFileWriterHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Errorf("boom")
	assert.False(t, strings.Contains(buf.String(), "\x1b["))
}

func TestPrinter_ScoreFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf)
	assert.Equal(t, "0.930", p.Score(0.93))
}
