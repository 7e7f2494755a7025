package hocr

import (
	"fmt"
	"html"
	"strings"

	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
)

// FromBoxes renders OCR boxes as an hOCR document for a page of the given
// pixel size. Boxes without a width or height are left out.
func FromBoxes(boxes []ocr.Box, width, height int) string {
	lines := GroupWordsIntoLines(WordsFromBoxes(boxes))

	var out []string
	wordIndex := 0
	for i, line := range lines {
		var words []string
		for _, word := range line.Words {
			wordIndex++
			id := fmt.Sprintf("word_1_%d", wordIndex)
			if word.ID != "" {
				id = "word_" + sanitizeID(word.ID)
			}
			words = append(words, fmt.Sprintf(`<span class='ocrx_word' id='%s' title='%s'>%s</span>`,
				id, bboxTitle(word.X, word.Y, word.Width, word.Height), html.EscapeString(word.Text)))
		}
		out = append(out, fmt.Sprintf(`<span class='ocr_line' id='line_1_%d' title='%s'>%s</span>`,
			i+1, bboxTitle(line.X, line.Y, line.Width, line.Height), strings.Join(words, " ")))
	}

	return WrapInHOCRDocument(strings.Join(out, "\n"), width, height)
}

// WrapInHOCRDocument wraps content in a complete hOCR HTML document
func WrapInHOCRDocument(content string, width, height int) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
<head>
<title></title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name='ocr-system' content='cropocr' />
<meta name='ocr-capabilities' content='ocr_page ocr_line ocrx_word' />
</head>
<body>
<div class='ocr_page' id='page_1' title='bbox 0 0 %d %d'>
%s
</div>
</body>
</html>`, width, height, content)
}

func bboxTitle(x, y, w, h int) string {
	return fmt.Sprintf("bbox %d %d %d %d", x, y, x+w, y+h)
}

// sanitizeID keeps ids usable as XML attribute values.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}
