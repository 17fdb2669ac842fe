package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		ok   bool
	}{
		{"Nil", nil, "", false},
		{"Plain", errors.New("boom"), "", false},
		{"NoFace", ErrNoFaceDetected, KindNoFaceDetected, true},
		{"WrappedNoFace", fmt.Errorf("encode: %w", ErrNoFaceDetected), KindNoFaceDetected, true},
		{"MissingField", &MissingFieldError{Field: "face_reg"}, KindInvalidInput, true},
		{"ShapeMismatch", fmt.Errorf("compare: %w", &ShapeMismatchError{Left: 3, Right: 2}), KindInvalidInput, true},
		{"Computation", NewComputationError("quantize", "log of non-positive value"), KindComputation, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "missing field: face_login", (&MissingFieldError{Field: "face_login"}).Error())
	assert.Equal(t, "shape mismatch: 512 != 64", (&ShapeMismatchError{Left: 512, Right: 64}).Error())

	cause := errors.New("short read")
	err := &Error{Kind: KindInvalidInput, Op: "decode", Message: "bad body", Err: cause}
	assert.Equal(t, "decode: bad body: short read", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestParseRepresentation(t *testing.T) {
	rep, err := ParseRepresentation("reduced")
	require.NoError(t, err)
	assert.Equal(t, RepresentationReduced, rep)

	_, err = ParseRepresentation("raw")
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindInvalidInput, kind)
}

func TestEmbedResultVector(t *testing.T) {
	q := &EmbedResult{Representation: RepresentationQuantized, Quantized: QuantizedEmbedding{1, -2, 3}}
	assert.Equal(t, []float64{1, -2, 3}, q.Vector())

	r := &EmbedResult{Representation: RepresentationReduced, Reduced: ReducedEmbedding{0.5, 1.5}}
	assert.Equal(t, []float64{0.5, 1.5}, r.Vector())
}
