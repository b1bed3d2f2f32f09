package diagram

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// pictographic covers the emoji and symbol blocks stripped before filtering.
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f1e0, Hi: 0x1f1ff, Stride: 1},
		{Lo: 0x1f300, Hi: 0x1f64f, Stride: 1},
		{Lo: 0x1f680, Hi: 0x1f6ff, Stride: 1},
		{Lo: 0x1f900, Hi: 0x1f9ff, Stride: 1},
		{Lo: 0x1fa70, Hi: 0x1faff, Stride: 1},
	},
}

// Sanitize makes free text safe to embed in Mermaid labels. Emoji are dropped,
// anything other than letters, digits, whitespace and . , ( ) : - becomes a
// space, and whitespace is collapsed and trimmed. Input is composed to NFC
// first so accents written as combining marks stay on their letters.
func Sanitize(text string) string {
	text = norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		if unicode.Is(pictographic, r) {
			continue
		}
		if allowedRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	// Dropping a rune can leave a newly composable pair behind.
	return norm.NFC.String(strings.Join(strings.Fields(b.String()), " "))
}

func allowedRune(r rune) bool {
	switch r {
	case '.', ',', '(', ')', ':', '-':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)
}
