// Package keyword matches log lines against a fixed set of error signatures.
package keyword

import "strings"

// Set is an ordered set of case-sensitive substrings. The zero value matches nothing.
type Set struct {
	words []string
}

// New builds a Set from words, dropping empty strings and duplicates while
// keeping first-seen order. The input slice is copied.
func New(words ...string) Set {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return Set{words: out}
}

// Match reports whether any keyword is a substring of line.
func (s Set) Match(line string) bool {
	for _, w := range s.words {
		if strings.Contains(line, w) {
			return true
		}
	}
	return false
}

// Len returns the number of keywords.
func (s Set) Len() int { return len(s.words) }

// Words returns a copy of the keywords in order.
func (s Set) Words() []string {
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}
