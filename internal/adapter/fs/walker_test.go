package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestWalkerIncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "alice", "1.jpg"))
	touch(t, filepath.Join(root, "alice", "2.png"))
	touch(t, filepath.Join(root, "alice", "notes.txt"))
	touch(t, filepath.Join(root, "bob", "1.jpg"))
	touch(t, filepath.Join(root, ".facequant", "thumb.jpg"))

	w := NewWalker([]string{"**/*.jpg", "**/*.png"}, []string{"**/.facequant/**", ".facequant/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, []string{"alice/1.jpg", "alice/2.png", "bob/1.jpg"}, rel)
}

func TestWalkerDefaultIncludesEverything(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.bin"))

	files, err := NewWalker(nil, nil).Walk(root)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWalkerMissingRoot(t *testing.T) {
	_, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
