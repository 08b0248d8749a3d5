package critic

import (
	"strings"
	"unicode"
)

// stopWords are excluded from overlap computation so function words do not
// inflate similarity.
var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "of": true, "on": true,
	"and": true, "a": true, "to": true, "in": true, "for": true,
	"with": true, "by": true, "from": true, "up": true, "about": true,
	"into": true, "over": true, "after": true,
	// Task phrasing verbs that appear in nearly every research query.
	"research": true, "find": true, "identify": true, "list": true,
	"describe": true, "explain": true,
}

// tokenize lowercases, strips punctuation and removes stop words.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || stopWords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}

// jaccard is the intersection-over-union similarity of the stop-word
// filtered token sets of a and b.
func jaccard(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for w := range ta {
		if tb[w] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
