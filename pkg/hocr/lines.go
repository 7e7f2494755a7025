package hocr

import (
	"math"
	"sort"

	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
)

// WordsFromBoxes converts drawable OCR boxes to integer word boxes. Edges are
// widened outward so the word box always covers the reported region.
func WordsFromBoxes(boxes []ocr.Box) []WordBox {
	result := &ocr.Result{Boxes: boxes}
	var words []WordBox
	for _, b := range result.Drawable() {
		x0 := int(math.Floor(b.X))
		y0 := int(math.Floor(b.Y))
		x1 := int(math.Ceil(b.X + b.W))
		y1 := int(math.Ceil(b.Y + b.H))
		words = append(words, WordBox{
			ID:     string(b.ID),
			X:      x0,
			Y:      y0,
			Width:  x1 - x0,
			Height: y1 - y0,
			Text:   b.Text,
		})
	}
	return words
}

// GroupWordsIntoLines orders words top-to-bottom, left-to-right and groups
// vertically overlapping words into lines.
func GroupWordsIntoLines(words []WordBox) []LineBox {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]WordBox, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if abs(sorted[i].Y-sorted[j].Y) < sorted[i].Height/2 {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lines []LineBox
	var current []WordBox

	for _, word := range sorted {
		if len(current) == 0 || wordsOnSameLine(current, word) {
			current = append(current, word)
			continue
		}
		lines = append(lines, createLineFromWords(current))
		current = []WordBox{word}
	}

	if len(current) > 0 {
		lines = append(lines, createLineFromWords(current))
	}

	return lines
}

func wordsOnSameLine(line []WordBox, word WordBox) bool {
	avgHeight := 0
	minY, maxY := line[0].Y, line[0].Y+line[0].Height
	for _, w := range line {
		avgHeight += w.Height
		minY = min(minY, w.Y)
		maxY = max(maxY, w.Y+w.Height)
	}
	avgHeight /= len(line)

	tolerance := avgHeight / 3
	return word.Y+word.Height >= minY-tolerance && word.Y <= maxY+tolerance
}

func createLineFromWords(words []WordBox) LineBox {
	minX, minY := words[0].X, words[0].Y
	maxX, maxY := words[0].X+words[0].Width, words[0].Y+words[0].Height

	for _, w := range words[1:] {
		minX = min(minX, w.X)
		minY = min(minY, w.Y)
		maxX = max(maxX, w.X+w.Width)
		maxY = max(maxY, w.Y+w.Height)
	}

	return LineBox{
		Words:  words,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
