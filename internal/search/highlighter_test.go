package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	content := strings.Repeat("lead ", 40) + "Markets rose today. " + strings.Repeat("tail ", 40)

	got := Snippet(content, []string{"markets"}, 60)
	assert.True(t, strings.HasPrefix(got, "..."), "snippet starts with ellipsis: %q", got)
	assert.Contains(t, got, "Markets rose")

	assert.Equal(t, "short text", Snippet("short text", []string{"zzz"}, 60))
	assert.Equal(t, "abcd...", Snippet("abcdefghij", nil, 4), "no terms truncates from start")
	assert.Equal(t, "anything", Snippet("anything", []string{"x"}, 0), "maxLen 0 returns as-is")
}
