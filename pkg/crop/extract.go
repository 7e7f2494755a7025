package crop

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MimeType of every Buffer produced by Extract.
const MimeType = "image/png"

// Buffer is an encoded crop ready for upload.
type Buffer struct {
	Data   []byte        `json:"-" yaml:"-"`
	Width  int           `json:"width" yaml:"width"`
	Height int           `json:"height" yaml:"height"`
	Source NaturalRegion `json:"source" yaml:"source"`
}

// MimeType returns the content type of Data.
func (b *Buffer) MimeType() string {
	return MimeType
}

// Extract copies the part of src selected by r into a new PNG.
//
// r is clamped to the rendered image first, so the buffer never extends past
// the source. It is a no-op returning (nil, nil) when src is nil, the
// dimensions are not ready, the clamped region is unset, or the floored output
// size is empty. The only error is a PNG encoding failure.
func Extract(src image.Image, d DisplayDimensions, r Region) (*Buffer, error) {
	if src == nil || !d.Ready() {
		return nil, nil
	}
	r = r.Clamp(d)
	if !r.IsSet() {
		return nil, nil
	}

	n, err := Scale(d, r)
	if err != nil {
		return nil, nil
	}
	w, h := n.OutputSize()
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	img := extractPixels(src, n, w, h)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &Buffer{
		Data:   buf.Bytes(),
		Width:  w,
		Height: h,
		Source: n,
	}, nil
}

// ExtractAsync runs Extract on its own goroutine and hands the result to done.
// It returns false, and never calls done, when Extract would be a no-op.
func ExtractAsync(src image.Image, d DisplayDimensions, r Region, done func(*Buffer, error)) bool {
	if src == nil || !d.Ready() {
		return false
	}
	r = r.Clamp(d)
	if !r.IsSet() {
		return false
	}
	n, err := Scale(d, r)
	if err != nil {
		return false
	}
	if w, h := n.OutputSize(); w <= 0 || h <= 0 {
		return false
	}

	go func() {
		buf, err := Extract(src, d, r)
		if done != nil {
			done(buf, err)
		}
	}()
	return true
}

// extractPixels writes the natural region into a w×h image whose origin is the
// region's top-left corner. Natural coordinates are relative to src.Bounds().Min.
func extractPixels(src image.Image, n NaturalRegion, w, h int) image.Image {
	origin := src.Bounds().Min

	if isWhole(n.X) && isWhole(n.Y) && float64(w) == n.Width && float64(h) == n.Height {
		x0 := origin.X + int(n.X)
		y0 := origin.Y + int(n.Y)
		return imaging.Crop(src, image.Rect(x0, y0, x0+w, y0+h))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sx := float64(w) / n.Width
	sy := float64(h) / n.Height
	ox := float64(origin.X) + n.X
	oy := float64(origin.Y) + n.Y
	s2d := f64.Aff3{
		sx, 0, -ox * sx,
		0, sy, -oy * sy,
	}
	sr := image.Rect(
		int(math.Floor(ox)), int(math.Floor(oy)),
		int(math.Ceil(ox+n.Width)), int(math.Ceil(oy+n.Height)),
	).Intersect(src.Bounds())

	draw.NearestNeighbor.Transform(dst, s2d, src, sr, draw.Src, nil)
	return dst
}

func isWhole(v float64) bool {
	return v == math.Trunc(v)
}
