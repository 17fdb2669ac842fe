package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facequant/internal/domain"
)

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write("alice/1.json", `[1, 2, 3]`)
	write("alice/2.json", `{"embedding_compressed": [1, 2, 4]}`)
	write("bob/1.json", `[9, 9, 9]`)
	write("stray.json", `[0, 0, 0]`)

	samples, rep, err := loadDir(root)
	require.NoError(t, err)
	assert.Equal(t, domain.RepresentationQuantized, rep)
	require.Len(t, samples, 3)

	byLabel := map[string]int{}
	for _, s := range samples {
		byLabel[s.Label]++
	}
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, byLabel)
}

func TestLoadDirRejectsMixedRepresentations(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "1.json"), []byte(`{"reduced_emb": [1]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "2.json"), []byte(`{"embedding_compressed": [1]}`), 0644))

	_, _, err := loadDir(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixes")
}

func TestLoadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	content := `{"path": "alice/1.png", "reduced_emb": [0, 0]}
{"path": "alice/2.png", "reduced_emb": [1, 0]}

{"path": "bob/1.png", "error": "no face detected in image"}
{"path": "bob/2.png", "reduced_emb": [8, 0]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	samples, rep, err := loadLines(path)
	require.NoError(t, err)
	assert.Equal(t, domain.RepresentationReduced, rep)
	require.Len(t, samples, 3)
	assert.Equal(t, "bob/2.png", samples[2].Source)
	assert.Equal(t, []float64{8, 0}, samples[2].Vector)
}

func TestLabelOf(t *testing.T) {
	assert.Equal(t, "alice", labelOf("alice/1.json"))
	assert.Equal(t, "alice", labelOf("alice/sub/1.json"))
	assert.Equal(t, "", labelOf("1.json"))
}
