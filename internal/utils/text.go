package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// HumanReadable turns identifiers like "general-chat" or "SEND_MESSAGES"
// into "General Chat" and "Send Messages".
func HumanReadable(value string) string {
	value = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, strings.ToLower(value))

	words := strings.Fields(value)
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}

// Truncate cuts value to at most limit runes, ending with suffix when cut.
func Truncate(value string, limit int, suffix string) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	keep := limit - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(value)
	return string(runes[:keep]) + suffix
}

// Flatten collapses all whitespace runs to single spaces and caps the result.
func Flatten(value string, limit int) string {
	return Truncate(strings.Join(strings.Fields(value), " "), limit, "")
}

// Chunk splits value into pieces of at most size runes.
func Chunk(value string, size int) []string {
	if size <= 0 || value == "" {
		return nil
	}
	runes := []rune(value)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
