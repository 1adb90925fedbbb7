package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 80))

	exact := strings.Repeat("a", 80)
	assert.Equal(t, exact, truncate(exact, 80))

	// Multi-byte characters straddle byte offset 77.
	msg := strings.Repeat("é", 100)
	got := truncate(msg, 80)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 80, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 77)+"...", got)
}
