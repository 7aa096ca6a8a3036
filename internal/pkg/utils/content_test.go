package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"tags removed", "<p>hello <strong>world</strong></p>", "hello world"},
		{"whitespace collapsed", "a\n\n  b\tc", "a b c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripHTML(tt.input))
		})
	}
}

func TestExcerpt(t *testing.T) {
	long := "<p>The quick brown fox jumps over the lazy dog again and again</p>"

	assert.Equal(t, "The quick brown fox jumps over the lazy dog again and again", Excerpt(long, 200))
	assert.Equal(t, "The quick…", Excerpt(long, 12))
	assert.Equal(t, "", Excerpt("", 100))
}

func TestGravatarURL(t *testing.T) {
	url := GravatarURL("  Someone@Example.COM ", 0)
	assert.Contains(t, url, "https://www.gravatar.com/avatar/")
	assert.Contains(t, url, "s=200")

	// Normalization makes casing and padding irrelevant.
	assert.Equal(t, url, GravatarURL("someone@example.com", 200))
}
