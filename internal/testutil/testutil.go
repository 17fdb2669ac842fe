// Package testutil provides fixtures for tests: small encoded images and
// stub collaborators with controllable behaviour.
//
// This package is intended for use in tests only.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"

	"facequant/internal/domain"
)

// PNG returns a w x h PNG whose pixels depend on seed, so different seeds
// give different bytes.
func PNG(w, h int, seed uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// StubEncoder returns a fixed embedding or error and counts calls.
type StubEncoder struct {
	Embedding domain.RawEmbedding
	Err       error
	Dim       int
	calls     atomic.Int64
}

func (s *StubEncoder) Encode(ctx context.Context, image []byte) (domain.RawEmbedding, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(domain.RawEmbedding, len(s.Embedding))
	copy(out, s.Embedding)
	return out, nil
}

func (s *StubEncoder) Dimension() int {
	if s.Dim > 0 {
		return s.Dim
	}
	return len(s.Embedding)
}

func (s *StubEncoder) ModelName() string { return "stub" }

func (s *StubEncoder) Calls() int64 { return s.calls.Load() }
