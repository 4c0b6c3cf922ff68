package generation

import (
	"strings"
	"unicode/utf8"
)

// SplitSentences splits text after every separator rune. Whitespace around
// sentences is trimmed and empty sentences are dropped.
func SplitSentences(text, separators string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(separators, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
	}
	if sentence := strings.TrimSpace(text[start:]); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}

// cutAtSeparator returns text up to and including its first separator and
// whether a separator was found.
func cutAtSeparator(text, separators string) (string, bool) {
	i := strings.IndexAny(text, separators)
	if i < 0 {
		return text, false
	}
	_, size := utf8.DecodeRuneInString(text[i:])
	return text[:i+size], true
}

func truncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return string([]rune(text)[:maxRunes])
}
