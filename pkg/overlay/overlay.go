package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"git.sr.ht/~sbinet/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/lehigh-university-libraries/cropocr/pkg/crop"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
)

// Style controls how boxes are outlined.
type Style struct {
	Color  string  `yaml:"color"`
	Width  float64 `yaml:"width"`
	Radius float64 `yaml:"radius"`
}

// DefaultStyle is a 2px red outline with 4px rounded corners and no fill.
func DefaultStyle() Style {
	return Style{Color: "#ff4d4d", Width: 2, Radius: 4}
}

// Render outlines every drawable box on a copy of img. Boxes without a width
// or height are skipped.
func Render(img image.Image, boxes []ocr.Box, style Style) (image.Image, error) {
	stroke, err := colorful.Hex(style.Color)
	if err != nil {
		return nil, fmt.Errorf("invalid overlay color %q: %w", style.Color, err)
	}

	dc := gg.NewContextForImage(img)
	dc.SetColor(stroke)
	dc.SetLineWidth(style.Width)

	result := &ocr.Result{Boxes: boxes}
	for _, b := range result.Drawable() {
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, style.Radius)
		dc.Stroke()
	}

	return dc.Image(), nil
}

// RenderPNG decodes an encoded crop, outlines the boxes and re-encodes it.
func RenderPNG(data []byte, boxes []ocr.Box, style Style) ([]byte, error) {
	img, err := crop.Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	out, err := Render(img, boxes, style)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}
