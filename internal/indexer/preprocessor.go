package indexer

import "strings"

// Preprocess normalizes extracted text for indexing: OCR output carries runs of blank
// lines, form feeds and stray NULs that only bloat stored fragments.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}
