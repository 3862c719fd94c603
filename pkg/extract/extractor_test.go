package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRegistryDispatchesText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.md", []byte("# Title\n\nbody"))

	res := NewRegistry().Extract(context.Background(), path)
	assert.Equal(t, "text", res.Method)
	assert.Equal(t, "# Title\n\nbody", res.Text)
	assert.Equal(t, "utf-8", res.Metadata["encoding"])
}

func TestRegistryDispatchesCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.py", []byte("print(1)\n"))

	res := NewRegistry().Extract(context.Background(), path)
	assert.Equal(t, "code", res.Method)
	assert.Equal(t, "# File: "+path+"\n\nprint(1)\n", res.Text)
}

func TestRegistryFallsBackToPlainText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "unknown.xyz", []byte("raw bytes"))

	res := NewRegistry().Extract(context.Background(), path)
	assert.Equal(t, "fallback", res.Method)
	assert.Equal(t, "raw bytes", res.Text)
}

func TestRegistryFailureIsNotFatal(t *testing.T) {
	// Not a real PDF, so the extractor fails and the registry degrades to
	// a failure text instead of an error.
	path := writeFile(t, t.TempDir(), "broken.pdf", []byte("not a pdf"))

	res := NewRegistry().Extract(context.Background(), path)
	assert.Equal(t, "pdf_failed", res.Method)
	assert.Contains(t, res.Text, "Failed to extract:")
}

func TestTextExtractorBOMDetection(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		text     string
		encoding string
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, "hi", "utf-8-sig"},
		{"utf16 le bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi", "utf-16-le"},
		{"utf16 be bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, "hi", "utf-16-be"},
		{"plain utf8", []byte("hi"), "hi", "utf-8"},
		{"latin1", []byte{'c', 'a', 'f', 0xE9}, "café", "latin-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "f.txt", tt.data)

			res, err := (&TextExtractor{}).Extract(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, tt.text, res.Text)
			assert.Equal(t, tt.encoding, res.Metadata["encoding"])
		})
	}
}

func TestCodeExtractorExtensions(t *testing.T) {
	e := &CodeExtractor{}
	assert.True(t, e.CanExtract("main.go"))
	assert.True(t, e.CanExtract("component.tsx"))
	assert.True(t, e.CanExtract("lib.cpp"))
	assert.False(t, e.CanExtract("notes.md"))
}

func TestPriorityOrdering(t *testing.T) {
	// A .pdf must go to the PDF extractor, not the fallback, even though
	// the fallback accepts every path.
	r := NewRegistry()
	path := writeFile(t, t.TempDir(), "doc.pdf", []byte("x"))

	res := r.Extract(context.Background(), path)
	assert.NotEqual(t, "fallback", res.Method)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AB", columnLetter(27))
}
