package claims

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// minSentenceLen filters fragments too short to carry a checkable fact.
	minSentenceLen = 20

	baseConfidence = 0.7
)

// subjectiveMarkers disqualify a sentence from being treated as a factual
// claim.
var subjectiveMarkers = []string{
	"i think",
	"i believe",
	"in my opinion",
	"hello",
	"hi there",
}

// Source describes where a piece of text came from.
type Source struct {
	URL    string
	Title  string
	Rank   int
	NodeID string
}

// Extractor turns free text into atomic claims. Each declarative sentence
// becomes one claim whose support text is the sentence itself.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract splits text into sentences and keeps the ones that look like
// verifiable statements.
func (e *Extractor) Extract(text string, src Source) []AtomicClaim {
	var out []AtomicClaim
	now := time.Now().UTC()

	for _, sentence := range SplitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if !isFactual(sentence) {
			continue
		}
		out = append(out, AtomicClaim{
			ClaimID:      uuid.NewString(),
			Statement:    sentence,
			SupportText:  sentence,
			SourceURL:    src.URL,
			SourceTitle:  src.Title,
			SourceRank:   src.Rank,
			SourceNodeID: src.NodeID,
			Confidence:   baseConfidence,
			Entities:     extractEntities(sentence),
			ExtractedAt:  now,
		})
	}
	return out
}

// SplitSentences breaks text after terminal punctuation followed by
// whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if isTerminal(runes[i]) {
			// A terminator only ends the sentence when followed by space
			// or end of input. Keeps "3.5" and "U.S." style tokens intact
			// often enough for snippet-sized text.
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
				for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
					i++
				}
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isFactual applies the declarative-sentence heuristics.
func isFactual(sentence string) bool {
	if len(sentence) < minSentenceLen {
		return false
	}
	if strings.HasSuffix(sentence, "?") {
		return false
	}
	lower := strings.ToLower(sentence)
	for _, marker := range subjectiveMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	hasLetter := false
	for _, r := range sentence {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

// extractEntities collects capitalised words that do not open a sentence.
// Crude named-entity mining, good enough for routing follow-up queries.
func extractEntities(sentence string) []string {
	words := strings.Fields(sentence)
	seen := make(map[string]bool)
	var entities []string

	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" || i == 0 {
			continue
		}
		first := []rune(trimmed)[0]
		if !unicode.IsUpper(first) {
			continue
		}
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		entities = append(entities, trimmed)
	}
	return entities
}
