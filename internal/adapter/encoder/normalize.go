package encoder

import (
	"fmt"
	"math"

	"facequant/internal/domain"
)

// Normalize scales v to unit L2 norm.
func Normalize(v []float64) (domain.RawEmbedding, error) {
	if len(v) == 0 {
		return nil, domain.NewComputationError("normalize", "empty embedding")
	}

	var sum float64
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, domain.NewComputationError("normalize", fmt.Sprintf("element %d is not finite", i))
		}
		sum += x * x
	}

	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) {
		return nil, domain.NewComputationError("normalize", fmt.Sprintf("cannot normalize vector with norm %v", norm))
	}

	out := make(domain.RawEmbedding, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, nil
}
