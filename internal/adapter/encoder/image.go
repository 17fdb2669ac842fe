package encoder

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"facequant/internal/domain"
)

// ImageInfo describes an uploaded image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ValidateImage checks that data is a decodable JPEG, PNG or GIF without
// decoding the pixels.
func ValidateImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, domain.NewInvalidInput("validate image", "empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, &domain.Error{
			Kind:    domain.KindInvalidInput,
			Op:      "validate image",
			Message: "unsupported or corrupt image",
			Err:     err,
		}
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return ImageInfo{}, domain.NewInvalidInput("validate image", fmt.Sprintf("image has zero size %dx%d", cfg.Width, cfg.Height))
	}

	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
