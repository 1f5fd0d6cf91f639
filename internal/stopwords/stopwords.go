// Package stopwords holds the fixed list of lowercase English function words
// excluded from embedding lookups and similarity computations.
package stopwords

import "strings"

var words = [...]string{
	"a", "able", "about", "across", "after", "all", "almost", "also", "am", "among",
	"an", "and", "any", "are", "as", "at", "be", "because", "been", "but",
	"by", "can", "cannot", "could", "dear", "did", "do", "does", "either", "else",
	"ever", "every", "for", "from", "get", "got", "had", "has", "have", "he",
	"her", "hers", "him", "his", "how", "however", "i", "if", "in", "into",
	"is", "it", "its", "just", "least", "let", "like", "likely", "may", "me",
	"might", "most", "must", "my", "neither", "no", "nor", "not", "of", "off",
	"often", "on", "only", "or", "other", "our", "own", "rather", "said", "say",
	"says", "she", "should", "since", "so", "some", "than", "that", "the", "their",
	"them", "then", "there", "these", "they", "this", "tis", "to", "too", "twas",
	"us", "wants", "was", "we", "were", "what", "when", "where", "which", "while",
	"who", "whom", "why", "will", "with", "would", "yet", "you", "your",
}

var set = func() map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// List returns a copy of the stopword list in its fixed order.
func List() []string {
	out := make([]string, len(words))
	copy(out, words[:])
	return out
}

// Len returns the number of stopwords.
func Len() int {
	return len(words)
}

// Contains reports whether word is a stopword. Matching is case-insensitive.
func Contains(word string) bool {
	_, ok := set[strings.ToLower(word)]
	return ok
}

// Filter returns the tokens that are not stopwords, preserving order.
func Filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !Contains(t) {
			out = append(out, t)
		}
	}
	return out
}
