package handler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"tags stripped", "<b>bold</b> text", "bold text"},
		{"script removed", "<script>alert(1)</script>hi", "hi"},
		{"entities kept as text", "a & b < c", "a & b < c"},
		{"escaped markup", "&lt;img src=x onerror=alert(1)&gt;ok", "ok"},
		{"trimmed", "  spaced  ", "spaced"},
		{"chinese", "你好 <i>世界</i>", "你好 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizeText(tt.input))
		})
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Alice", sanitizeName(" <u>Alice</u> "))
	assert.Empty(t, sanitizeName("<script></script>"))

	long := sanitizeName(strings.Repeat("宝", 30))
	assert.Equal(t, maxNameLength, utf8.RuneCountInString(long))
}
