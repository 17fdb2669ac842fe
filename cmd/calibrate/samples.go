package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"facequant/internal/adapter/fs"
	"facequant/internal/domain"
)

// vectorFile is either an embed response body or one line of
// `facequant embed --dir` output.
type vectorFile struct {
	Path                string    `json:"path"`
	EmbeddingCompressed []float64 `json:"embedding_compressed"`
	ReducedEmb          []float64 `json:"reduced_emb"`
	Error               string    `json:"error"`
}

func (v vectorFile) vector() ([]float64, domain.Representation) {
	if v.ReducedEmb != nil {
		return v.ReducedEmb, domain.RepresentationReduced
	}
	return v.EmbeddingCompressed, domain.RepresentationQuantized
}

// labelOf returns the first path element, which names the identity.
func labelOf(rel string) string {
	rel = filepath.ToSlash(rel)
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return ""
}

// loadDir reads <label>/<name>.json files below root. Each file holds a bare
// JSON array or an embed response body.
func loadDir(root string) ([]domain.LabeledEmbedding, domain.Representation, error) {
	files, err := fs.NewWalker([]string{"**/*.json"}, nil).Walk(root)
	if err != nil {
		return nil, "", err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}

	var samples []domain.LabeledEmbedding
	var rep domain.Representation
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			return nil, "", err
		}
		label := labelOf(rel)
		if label == "" {
			continue
		}

		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, "", err
		}

		var vec []float64
		fileRep := domain.Representation("")
		if err := json.Unmarshal(data, &vec); err != nil {
			var body vectorFile
			if err := json.Unmarshal(data, &body); err != nil {
				return nil, "", fmt.Errorf("%s: %w", rel, err)
			}
			vec, fileRep = body.vector()
		}
		if len(vec) == 0 {
			return nil, "", fmt.Errorf("%s: no embedding", rel)
		}
		if rep, err = mergeRepresentation(rep, fileRep, rel); err != nil {
			return nil, "", err
		}

		samples = append(samples, domain.LabeledEmbedding{Label: label, Source: filepath.ToSlash(rel), Vector: vec})
	}
	return samples, rep, nil
}

// loadLines reads JSON lines written by `facequant embed --dir`. Lines
// carrying an error are skipped.
func loadLines(path string) ([]domain.LabeledEmbedding, domain.Representation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var samples []domain.LabeledEmbedding
	var rep domain.Representation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var v vectorFile
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, "", fmt.Errorf("line %d: %w", line, err)
		}
		if v.Error != "" {
			continue
		}
		label := labelOf(v.Path)
		if label == "" {
			continue
		}

		vec, lineRep := v.vector()
		if rep, err = mergeRepresentation(rep, lineRep, fmt.Sprintf("line %d", line)); err != nil {
			return nil, "", err
		}
		samples = append(samples, domain.LabeledEmbedding{Label: label, Source: v.Path, Vector: vec})
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}
	return samples, rep, nil
}

func mergeRepresentation(have, next domain.Representation, where string) (domain.Representation, error) {
	switch {
	case next == "":
		return have, nil
	case have == "" || have == next:
		return next, nil
	default:
		return "", fmt.Errorf("%s: mixes %s and %s embeddings", where, have, next)
	}
}
