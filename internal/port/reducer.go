package port

import "facequant/internal/domain"

// Reducer applies a fixed linear projection to quantized embeddings.
type Reducer interface {
	Reduce(q domain.QuantizedEmbedding) (domain.ReducedEmbedding, error)

	InputDimension() int

	OutputDimension() int

	// Fingerprint identifies the loaded model, so cached results can be
	// invalidated when it changes.
	Fingerprint() string
}
