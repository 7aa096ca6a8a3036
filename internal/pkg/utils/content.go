package utils

import (
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// StripHTML removes markup and collapses whitespace, for plain-text
// renditions of post content.
func StripHTML(content string) string {
	text := htmlTagPattern.ReplaceAllString(content, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Excerpt derives a plain-text preview from post content, cut at a word
// boundary.
func Excerpt(content string, maxLen int) string {
	text := StripHTML(content)
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	cut := text[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
