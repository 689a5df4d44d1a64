package prompt

import (
	"strings"
	"unicode/utf8"
)

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
	'「':  '」',
	'『':  '』',
}

// stripEnclosingQuotes removes exactly one layer of matching quotes.
func stripEnclosingQuotes(text string) string {
	if utf8.RuneCountInString(text) < 2 {
		return text
	}
	first, firstSize := utf8.DecodeRuneInString(text)
	last, lastSize := utf8.DecodeLastRuneInString(text)
	closing, ok := quotePairs[first]
	if !ok || closing != last {
		return text
	}
	return strings.TrimSpace(text[firstSize : len(text)-lastSize])
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
