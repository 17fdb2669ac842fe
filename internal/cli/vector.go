package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"facequant/internal/domain"
)

// readVector reads a JSON number array, or an embed response body, from
// path. "-" reads stdin. The second result names the representation when
// the input said so.
func readVector(path string, stdin io.Reader) ([]float64, domain.Representation, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var body struct {
			EmbeddingCompressed []float64 `json:"embedding_compressed"`
			ReducedEmb          []float64 `json:"reduced_emb"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		switch {
		case body.ReducedEmb != nil:
			return body.ReducedEmb, domain.RepresentationReduced, nil
		case body.EmbeddingCompressed != nil:
			return body.EmbeddingCompressed, domain.RepresentationQuantized, nil
		default:
			return nil, "", fmt.Errorf("%s: no embedding_compressed or reduced_emb field", path)
		}
	}

	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: expected a JSON array of numbers: %w", path, err)
	}
	return v, "", nil
}
