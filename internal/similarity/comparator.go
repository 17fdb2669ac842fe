package similarity

import (
	"fmt"

	"facequant/internal/domain"
)

// Thresholds holds one match threshold per representation. PCA changes the
// distance scale, so a threshold tuned for one space is meaningless in the
// other.
type Thresholds struct {
	Quantized float64
	Reduced   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Quantized: DefaultQuantizedThreshold,
		Reduced:   DefaultReducedThreshold,
	}
}

// Comparator compares embeddings using the threshold of their representation.
type Comparator struct {
	thresholds Thresholds
}

func NewComparator(t Thresholds) (*Comparator, error) {
	if err := validateThreshold(t.Quantized); err != nil {
		return nil, fmt.Errorf("quantized threshold: %w", err)
	}
	if err := validateThreshold(t.Reduced); err != nil {
		return nil, fmt.Errorf("reduced threshold: %w", err)
	}
	return &Comparator{thresholds: t}, nil
}

// Threshold returns the threshold configured for rep.
func (c *Comparator) Threshold(rep domain.Representation) (float64, error) {
	switch rep {
	case domain.RepresentationQuantized:
		return c.thresholds.Quantized, nil
	case domain.RepresentationReduced:
		return c.thresholds.Reduced, nil
	default:
		return 0, domain.NewInvalidInput("compare", fmt.Sprintf("unknown representation %q", rep))
	}
}

func (c *Comparator) Compare(rep domain.Representation, a, b []float64) (domain.ComparisonResult, error) {
	threshold, err := c.Threshold(rep)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	res, err := Compare(a, b, threshold)
	if err != nil {
		return domain.ComparisonResult{}, err
	}
	res.Representation = rep
	return res, nil
}
