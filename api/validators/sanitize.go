package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input and truncates it to at most maxLen bytes
// without splitting a UTF-8 sequence.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}

// NormalizeBarcode strips whitespace and dashes that scanners and manual
// entry sometimes add.
func NormalizeBarcode(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, input)
	return SanitizeString(cleaned, maxLen)
}
