package crop

import (
	"errors"
	"image"
)

// ErrNotReady is returned when the source image has not reported a usable
// rendered or natural size yet.
var ErrNotReady = errors.New("image dimensions not ready")

// DisplayDimensions pairs the size an image occupies in the layout with its
// source pixel size.
type DisplayDimensions struct {
	RenderedWidth  float64 `json:"rendered_width" yaml:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height" yaml:"rendered_height"`
	NaturalWidth   float64 `json:"natural_width" yaml:"natural_width"`
	NaturalHeight  float64 `json:"natural_height" yaml:"natural_height"`
}

// NewDisplayDimensions captures the natural size of img together with the
// rendered size reported by the layout. A zero rendered width or height means
// the image is shown at natural size on that axis.
func NewDisplayDimensions(img image.Image, renderedWidth, renderedHeight float64) DisplayDimensions {
	var natW, natH float64
	if img != nil {
		b := img.Bounds()
		natW, natH = float64(b.Dx()), float64(b.Dy())
	}
	if renderedWidth == 0 {
		renderedWidth = natW
	}
	if renderedHeight == 0 {
		renderedHeight = natH
	}
	return DisplayDimensions{
		RenderedWidth:  renderedWidth,
		RenderedHeight: renderedHeight,
		NaturalWidth:   natW,
		NaturalHeight:  natH,
	}
}

// Ready reports whether every dimension is positive.
func (d DisplayDimensions) Ready() bool {
	return d.RenderedWidth > 0 && d.RenderedHeight > 0 && d.NaturalWidth > 0 && d.NaturalHeight > 0
}

// ScaleFactors returns natural/rendered for both axes.
func (d DisplayDimensions) ScaleFactors() (float64, float64, error) {
	if !d.Ready() {
		return 0, 0, ErrNotReady
	}
	return d.NaturalWidth / d.RenderedWidth, d.NaturalHeight / d.RenderedHeight, nil
}
