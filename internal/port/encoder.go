package port

import (
	"context"

	"facequant/internal/domain"
)

// FaceEncoder turns image bytes into a unit-norm face embedding.
type FaceEncoder interface {
	// Encode detects the most prominent face in image and returns its embedding.
	// Returns domain.ErrNoFaceDetected when the image contains no usable face.
	Encode(ctx context.Context, image []byte) (domain.RawEmbedding, error)

	// Dimension returns the embedding dimension (0 if unknown).
	Dimension() int

	// ModelName returns the name of the encoder model.
	ModelName() string
}
