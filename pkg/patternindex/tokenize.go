package patternindex

import "strings"

// minTokenLength drops short tokens that carry little discriminative value
// (spec.md §4.1: "drop tokens shorter than 3 chars").
const minTokenLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {},
	"with": {}, "from": {}, "into": {}, "are": {}, "was": {},
	"were": {}, "has": {}, "have": {}, "had": {}, "not": {},
}

// tokenize splits text into a set of lowercase identifier-like tokens,
// dropping short tokens and the small stop set.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var b strings.Builder

	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := strings.ToLower(b.String())
		b.Reset()
		if len(tok) < minTokenLength {
			return
		}
		if _, stop := stopWords[tok]; stop {
			return
		}
		tokens[tok] = struct{}{}
	}

	for _, r := range text {
		if isAlphaNumeric(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func isAlphaNumeric(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	default:
		return false
	}
}

// jaccard computes the Jaccard similarity between two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
