package reducer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"facequant/internal/domain"
)

// Model is a PCA projection exported from a fitted scikit-learn PCA:
// mean_, components_, explained_variance_ and whiten.
type Model struct {
	Mean              []float64   `json:"mean" yaml:"mean"`
	Components        [][]float64 `json:"components" yaml:"components"`
	ExplainedVariance []float64   `json:"explained_variance,omitempty" yaml:"explained_variance,omitempty"`
	Whiten            bool        `json:"whiten,omitempty" yaml:"whiten,omitempty"`
}

// PCA projects D-dimensional quantized embeddings onto K principal
// components. It is read-only after construction and safe for concurrent use.
type PCA struct {
	mean        *mat.VecDense
	components  *mat.Dense // K x D
	scale       []float64  // 1/sqrt(explained variance) when whitening
	in, out     int
	fingerprint string
}

// Load reads a model from a .json, .yaml or .yml file.
func Load(path string) (*PCA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCA model: %w", err)
	}

	var m Model
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".json", "":
		err = json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported PCA model format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse PCA model %s: %w", path, err)
	}

	p, err := New(m)
	if err != nil {
		return nil, fmt.Errorf("invalid PCA model %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	p.fingerprint = hex.EncodeToString(sum[:8])
	return p, nil
}

// New builds a PCA from an in-memory model.
func New(m Model) (*PCA, error) {
	d := len(m.Mean)
	k := len(m.Components)
	if d == 0 {
		return nil, fmt.Errorf("mean is empty")
	}
	if k == 0 {
		return nil, fmt.Errorf("no components")
	}

	flat := make([]float64, 0, k*d)
	for i, row := range m.Components {
		if len(row) != d {
			return nil, fmt.Errorf("component %d has %d values, expected %d", i, len(row), d)
		}
		flat = append(flat, row...)
	}

	p := &PCA{
		mean:       mat.NewVecDense(d, append([]float64(nil), m.Mean...)),
		components: mat.NewDense(k, d, flat),
		in:         d,
		out:        k,
	}

	if m.Whiten {
		if len(m.ExplainedVariance) != k {
			return nil, fmt.Errorf("whitening needs %d explained variances, got %d", k, len(m.ExplainedVariance))
		}
		p.scale = make([]float64, k)
		for i, v := range m.ExplainedVariance {
			if !(v > 0) {
				return nil, fmt.Errorf("explained variance %d must be positive, got %v", i, v)
			}
			p.scale[i] = 1 / math.Sqrt(v)
		}
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%v|%v|%v", m.Mean, m.Components, m.ExplainedVariance)))
	p.fingerprint = hex.EncodeToString(sum[:8])
	return p, nil
}

// Reduce computes (q - mean) * components^T.
func (p *PCA) Reduce(q domain.QuantizedEmbedding) (domain.ReducedEmbedding, error) {
	if len(q) != p.in {
		return nil, fmt.Errorf("reduce: %w", &domain.ShapeMismatchError{Left: len(q), Right: p.in})
	}

	x := mat.NewVecDense(p.in, q.Floats())
	x.SubVec(x, p.mean)

	var y mat.VecDense
	y.MulVec(p.components, x)

	out := make(domain.ReducedEmbedding, p.out)
	for i := range out {
		v := y.AtVec(i)
		if p.scale != nil {
			v *= p.scale[i]
		}
		out[i] = v
	}
	return out, nil
}

func (p *PCA) InputDimension() int { return p.in }

func (p *PCA) OutputDimension() int { return p.out }

func (p *PCA) Fingerprint() string { return p.fingerprint }
