// Package similarity decides whether two embeddings belong to the same face.
package similarity

import (
	"fmt"
	"math"

	"facequant/internal/domain"
)

const (
	// DefaultQuantizedThreshold applies to distances between raw quantized vectors.
	DefaultQuantizedThreshold = 1.0
	// DefaultReducedThreshold applies to distances between PCA-reduced vectors.
	DefaultReducedThreshold = 7.0
)

// Euclidean returns sqrt(sum((a_i - b_i)^2)).
func Euclidean(a, b []float64) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}

	var sum, scale float64
	for i := range a {
		d := a[i] - b[i]
		if math.IsInf(d, 0) {
			return 0, domain.NewComputationError("compare", fmt.Sprintf("difference at element %d overflows", i))
		}
		sum += d * d
		scale = math.Max(scale, math.Abs(d))
	}
	if !math.IsInf(sum, 0) {
		return math.Sqrt(sum), nil
	}

	// Squares overflowed; sum them relative to the largest difference.
	sum = 0
	for i := range a {
		r := (a[i] - b[i]) / scale
		sum += r * r
	}
	dist := scale * math.Sqrt(sum)
	if math.IsInf(dist, 0) {
		return 0, domain.NewComputationError("compare", "distance overflows")
	}
	return dist, nil
}

// Compare computes the distance between a and b and reports a match when the
// distance is strictly below threshold.
func Compare(a, b []float64, threshold float64) (domain.ComparisonResult, error) {
	if err := validateThreshold(threshold); err != nil {
		return domain.ComparisonResult{}, err
	}

	dist, err := Euclidean(a, b)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	return domain.ComparisonResult{
		Distance:  dist,
		Match:     dist < threshold,
		Threshold: threshold,
	}, nil
}

func validatePair(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("compare: %w", &domain.ShapeMismatchError{Left: len(a), Right: len(b)})
	}
	if len(a) == 0 {
		return domain.NewInvalidInput("compare", "empty embedding")
	}
	for i := range a {
		if !isFinite(a[i]) || !isFinite(b[i]) {
			return domain.NewInvalidInput("compare", fmt.Sprintf("element %d is not a finite number", i))
		}
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if !isFinite(threshold) || threshold <= 0 {
		return domain.NewInvalidInput("compare", fmt.Sprintf("threshold must be a positive finite number, got %v", threshold))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
