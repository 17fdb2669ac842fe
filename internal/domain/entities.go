package domain

import "fmt"

// RawEmbedding is a unit-norm face embedding as produced by an encoder.
type RawEmbedding []float64

// QuantizedEmbedding is the log-bucketed integer form of a RawEmbedding.
type QuantizedEmbedding []int64

// Floats returns the quantized values as float64 for projection or comparison.
func (q QuantizedEmbedding) Floats() []float64 {
	out := make([]float64, len(q))
	for i, v := range q {
		out[i] = float64(v)
	}
	return out
}

// ReducedEmbedding is a QuantizedEmbedding after linear projection.
type ReducedEmbedding []float64

// Representation names the vector space an embedding lives in.
// Distances are only comparable within one representation.
type Representation string

const (
	RepresentationQuantized Representation = "quantized"
	RepresentationReduced   Representation = "reduced"
)

func ParseRepresentation(s string) (Representation, error) {
	switch Representation(s) {
	case RepresentationQuantized, RepresentationReduced:
		return Representation(s), nil
	default:
		return "", NewInvalidInput("parse representation", fmt.Sprintf("unknown representation %q", s))
	}
}

type ComparisonResult struct {
	Distance       float64        `json:"distance"`
	Match          bool           `json:"match"`
	Threshold      float64        `json:"threshold"`
	Representation Representation `json:"representation,omitempty"`
}

// EmbedResult is the output of the embed pipeline. Exactly one of
// Quantized and Reduced is set, according to Representation.
type EmbedResult struct {
	Representation Representation     `json:"representation"`
	Quantized      QuantizedEmbedding `json:"embedding_compressed,omitempty"`
	Reduced        ReducedEmbedding   `json:"reduced_emb,omitempty"`
	Model          string             `json:"model,omitempty"`
}

// Vector returns the embedding in float form regardless of representation.
func (r *EmbedResult) Vector() []float64 {
	if r.Representation == RepresentationReduced {
		return r.Reduced
	}
	return r.Quantized.Floats()
}

// LabeledEmbedding is an embedding tagged with the identity it belongs to.
type LabeledEmbedding struct {
	Label  string
	Source string
	Vector []float64
}
