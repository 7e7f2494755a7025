package hocr

// WordBox is one recognized word in integer page coordinates
type WordBox struct {
	ID                  string
	X, Y, Width, Height int
	Text                string
}

// LineBox represents a line of text containing multiple words
type LineBox struct {
	Words               []WordBox
	X, Y, Width, Height int
}
