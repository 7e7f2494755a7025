package crop

import (
	"fmt"
	"math"
	"strings"
)

// Unit is the unit a Region is expressed in.
type Unit string

const (
	Pixels  Unit = "px"
	Percent Unit = "%"
)

// ParseUnit accepts "px", "%", "percent" and the empty string (pixels).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "px", "pixel", "pixels":
		return Pixels, nil
	case "%", "percent", "pct":
		return Percent, nil
	default:
		return "", fmt.Errorf("unknown crop unit %q", s)
	}
}

// Region is a user selection in rendered coordinates.
type Region struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Unit   Unit    `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// IsSet reports whether the region has a positive width and height.
// NaN counts as unset.
func (r Region) IsSet() bool {
	return r.Width > 0 && r.Height > 0
}

// Pixels converts a percentage region to rendered pixels. Percentages of X and
// Width are taken against the rendered width, Y and Height against the
// rendered height.
func (r Region) Pixels(d DisplayDimensions) Region {
	if r.Unit != Percent {
		r.Unit = Pixels
		return r
	}
	return Region{
		X:      r.X * d.RenderedWidth / 100,
		Y:      r.Y * d.RenderedHeight / 100,
		Width:  r.Width * d.RenderedWidth / 100,
		Height: r.Height * d.RenderedHeight / 100,
		Unit:   Pixels,
	}
}

// Clamp normalizes r to pixels and intersects it with the rendered image
// bounds. A selection dragged past an edge is truncated at that edge.
func (r Region) Clamp(d DisplayDimensions) Region {
	p := r.Pixels(d)
	x0 := math.Max(p.X, 0)
	y0 := math.Max(p.Y, 0)
	x1 := math.Min(p.X+p.Width, d.RenderedWidth)
	y1 := math.Min(p.Y+p.Height, d.RenderedHeight)
	out := Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Unit: Pixels}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

// NaturalRegion is a Region mapped to source pixel coordinates.
type NaturalRegion struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// OutputSize is the pixel size of the extracted buffer. Fractional sizes are
// floored, never rounded.
func (n NaturalRegion) OutputSize() (int, int) {
	return int(math.Floor(n.Width)), int(math.Floor(n.Height))
}

// Scale maps r (normalized to pixels) into natural coordinates.
func Scale(d DisplayDimensions, r Region) (NaturalRegion, error) {
	sx, sy, err := d.ScaleFactors()
	if err != nil {
		return NaturalRegion{}, err
	}
	p := r.Pixels(d)
	return NaturalRegion{
		X:      p.X * sx,
		Y:      p.Y * sy,
		Width:  p.Width * sx,
		Height: p.Height * sy,
	}, nil
}

// DefaultRegion is the selection offered when a new image loads: a square
// half as wide as the rendered image, centered on both axes and shrunk to fit
// when the image is too short to hold it.
func DefaultRegion(renderedWidth, renderedHeight float64) Region {
	if renderedWidth <= 0 || renderedHeight <= 0 {
		return Region{Unit: Pixels}
	}
	side := renderedWidth * 0.5
	if side > renderedHeight {
		side = renderedHeight
	}
	return Region{
		X:      (renderedWidth - side) / 2,
		Y:      (renderedHeight - side) / 2,
		Width:  side,
		Height: side,
		Unit:   Pixels,
	}
}
