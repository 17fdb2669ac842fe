package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"facequant/internal/domain"
)

// MockEncoder derives a deterministic unit vector from the image digest.
// Identical bytes always produce identical embeddings.
type MockEncoder struct {
	dimension int
}

func NewMockEncoder(dimension int) *MockEncoder {
	if dimension <= 0 {
		dimension = 512
	}
	return &MockEncoder{dimension: dimension}
}

func (e *MockEncoder) Encode(ctx context.Context, image []byte) (domain.RawEmbedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, domain.ErrNoFaceDetected
	}

	sum := sha256.Sum256(image)
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))

	v := make([]float64, e.dimension)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return Normalize(v)
}

func (e *MockEncoder) Dimension() int {
	return e.dimension
}

func (e *MockEncoder) ModelName() string {
	return "mock"
}
