package search

import (
	"strings"

	"github.com/hyperjump/newsvec/pkg/utils"
)

// Snippet returns up to maxLen characters of content, starting a little
// before the first occurrence of any of terms. Without a match the start of
// the content is used.
func Snippet(content string, terms []string, maxLen int) string {
	if maxLen <= 0 {
		return content
	}
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))
	start := 0
	if len(lower) == len(runes) {
		first := -1
		for _, term := range terms {
			if term == "" {
				continue
			}
			if i := indexRunes(lower, []rune(strings.ToLower(term))); i >= 0 && (first < 0 || i < first) {
				first = i
			}
		}
		if first > maxLen/4 {
			start = first - maxLen/4
		}
	}
	out := string(runes[start:])
	if start > 0 {
		out = "..." + strings.TrimLeft(out, " ")
	}
	return utils.Truncate(out, maxLen)
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
