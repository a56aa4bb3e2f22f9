// Package ocr turns page images into word detections.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/language"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/geometry"
)

const (
	DefaultLanguageHint = "ja"
	FallbackText        = "[ocr unavailable]"
)

// Engine detects words on an encoded image.
type Engine interface {
	Name() string
	Detect(ctx context.Context, img []byte, languageHint string) ([]internal.OCRWord, error)
}

// ImageSize reads the pixel dimensions from the image header without
// decoding the whole image.
func ImageSize(img []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Fallback returns a single placeholder word covering the whole image.
func Fallback(img []byte) ([]internal.OCRWord, error) {
	w, h, err := ImageSize(img)
	if err != nil {
		return nil, err
	}
	fw, fh := float64(w), float64(h)
	return []internal.OCRWord{{
		Text: FallbackText,
		Poly: [4]geometry.Point{{X: 0, Y: 0}, {X: fw, Y: 0}, {X: fw, Y: fh}, {X: 0, Y: fh}},
	}}, nil
}

// FallbackEngine never calls an OCR service.
type FallbackEngine struct{}

func (FallbackEngine) Name() string { return "fallback" }

func (FallbackEngine) Detect(ctx context.Context, img []byte, languageHint string) ([]internal.OCRWord, error) {
	return Fallback(img)
}

// normalizeHint returns the canonical BCP 47 form of hint, or "" when the
// hint is empty or unparseable.
func normalizeHint(hint string) string {
	if hint == "" {
		return ""
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return ""
	}
	return tag.String()
}
