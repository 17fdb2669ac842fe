package quantize

import (
	"fmt"
	"math"

	"facequant/internal/domain"
)

const (
	DefaultBase = 1.00049
	DefaultBias = 50.0
)

// Quantizer applies logarithmic compression with a fixed base and bias.
// It is immutable and safe for concurrent use.
type Quantizer struct {
	base    float64
	bias    float64
	logBase float64
}

// New creates a Quantizer. base must be finite and greater than 1.
func New(base, bias float64) (*Quantizer, error) {
	if math.IsNaN(base) || math.IsInf(base, 0) || base <= 1 {
		return nil, domain.NewInvalidInput("quantize", fmt.Sprintf("base must be a finite number > 1, got %v", base))
	}
	if math.IsNaN(bias) || math.IsInf(bias, 0) {
		return nil, domain.NewInvalidInput("quantize", fmt.Sprintf("bias must be finite, got %v", bias))
	}
	logBase := math.Log(base)
	if logBase <= 0 {
		return nil, domain.NewInvalidInput("quantize", fmt.Sprintf("base %v is too close to 1", base))
	}
	return &Quantizer{
		base:    base,
		bias:    bias,
		logBase: logBase,
	}, nil
}

// NewDefault returns a Quantizer with DefaultBase and DefaultBias.
func NewDefault() *Quantizer {
	q, _ := New(DefaultBase, DefaultBias)
	return q
}

func (q *Quantizer) Base() float64 { return q.base }

func (q *Quantizer) Bias() float64 { return q.bias }

// Compress quantizes every component of raw. All components are validated
// before any logarithm is taken, so a failing call never returns a partial
// vector.
func (q *Quantizer) Compress(raw domain.RawEmbedding) (domain.QuantizedEmbedding, error) {
	if len(raw) == 0 {
		return nil, domain.NewInvalidInput("quantize", "empty embedding")
	}

	for i, e := range raw {
		shifted := e + q.bias
		if math.IsNaN(shifted) || math.IsInf(shifted, 0) || shifted <= 0 {
			return nil, domain.NewComputationError("quantize",
				fmt.Sprintf("element %d: %v + bias %v is not a positive finite number", i, e, q.bias))
		}
	}

	out := make(domain.QuantizedEmbedding, len(raw))
	for i, e := range raw {
		b := math.Floor(math.Log(e+q.bias) / q.logBase)
		if b >= math.MaxInt64 || b < math.MinInt64 {
			return nil, domain.NewComputationError("quantize",
				fmt.Sprintf("element %d: bucket %v overflows int64", i, b))
		}
		out[i] = int64(b)
	}
	return out, nil
}

// Bucket returns the bucket index for a single value.
func (q *Quantizer) Bucket(e float64) (int64, error) {
	v, err := q.Compress(domain.RawEmbedding{e})
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Compress is a convenience wrapper around New(base, bias).Compress(raw).
func Compress(raw domain.RawEmbedding, base, bias float64) (domain.QuantizedEmbedding, error) {
	q, err := New(base, bias)
	if err != nil {
		return nil, err
	}
	return q.Compress(raw)
}
