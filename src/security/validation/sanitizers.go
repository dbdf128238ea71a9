package validation

import (
	"strings"
	"unicode"
)

// CleanText strips non-printable runes and trims surrounding whitespace.
// Till inputs arrive from barcode scanners as well as keyboards, and a
// misread can smuggle control bytes into a name field that would later
// corrupt the fixed-width receipt layout.
func CleanText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(cleaned)
}

// CleanReason normalizes a free-text reason or note for an audit row:
// printable runes only, trimmed, clamped to max runes. A max of 0 means
// no length limit.
func CleanReason(s string, max int) string {
	cleaned := CleanText(s)
	if max > 0 {
		runes := []rune(cleaned)
		if len(runes) > max {
			cleaned = strings.TrimSpace(string(runes[:max]))
		}
	}
	return cleaned
}
