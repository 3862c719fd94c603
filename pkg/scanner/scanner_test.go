package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func relPaths(records []FileRecord) []string {
	paths := make([]string, 0, len(records))
	for _, r := range records {
		paths = append(paths, r.RelativePath)
	}
	return paths
}

func TestScanIncludesMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "hello")
	writeFile(t, root, "b.py", "print(1)")
	writeFile(t, root, "sub/c.txt", "x")
	writeFile(t, root, "image.png", "binary")

	s := New([]string{"*.md", "*.py", "*.txt"}, nil)
	records, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.md", "b.py", "sub/c.txt"}, relPaths(records))
}

func TestScanRecordFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "hello")

	records, err := New([]string{"*.md"}, nil).Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "a.md", r.RelativePath)
	assert.Equal(t, filepath.Join(root, "a.md"), r.AbsolutePath)
	assert.Equal(t, int64(5), r.Size)
	assert.Len(t, r.ContentHash, 64)
	assert.False(t, r.ModTime.IsZero())
}

func TestScanPrunesExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "keep")
	writeFile(t, root, "node_modules/dep/readme.md", "dep")
	writeFile(t, root, ".git/config.md", "git")

	records, err := New([]string{"*.md"}, nil).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.md"}, relPaths(records))
}

func TestScanExcludesByFilenamePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "module.py", "code")
	writeFile(t, root, "cache.pyc", "bytecode")

	records, err := New([]string{"*.py", "*.pyc"}, []string{"*.pyc"}).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"module.py"}, relPaths(records))
}

func TestScanExcludeWinsOverInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "venv/lib/settings.py", "x")
	writeFile(t, root, "app.py", "x")

	records, err := New([]string{"*.py"}, []string{"venv"}).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"app.py"}, relPaths(records))
}

func TestScanDefaultPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "n")
	writeFile(t, root, "data.csv", "a,b")
	writeFile(t, root, "binary.exe", "x")

	records, err := New(nil, nil).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"notes.md", "data.csv"}, relPaths(records))
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 250; i++ {
		writeFile(t, root, filepath.Join("many", "f"+string(rune('a'+i%26))+string(rune('a'+i/26))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New([]string{"*.txt"}, nil).Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
