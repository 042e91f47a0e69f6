package memory

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the usual ~4 characters per token approximation for
// English text with BPE tokenisers.
const charsPerToken = 4

// TruncatedPrefix marks text that lost its beginning.
const TruncatedPrefix = "[TRUNCATED]..."

// TruncatedSuffix marks text that lost its end.
const TruncatedSuffix = "...[TRUNCATED]"

// Tokenize splits s into estimated tokens of charsPerToken runes each. The
// last token may be shorter. Joining the result yields s.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, CountTokens(s))
	start, runes := 0, 0
	for i := range s {
		if runes == charsPerToken {
			tokens = append(tokens, s[start:i])
			start, runes = i, 0
		}
		runes++
	}
	return append(tokens, s[start:])
}

// CountTokens estimates the number of tokens in s.
func CountTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// KeepTail returns the last max tokens of s prefixed with TruncatedPrefix,
// or s unchanged when it already fits.
func KeepTail(s string, max int) string {
	if max <= 0 {
		return ""
	}
	tokens := Tokenize(s)
	if len(tokens) <= max {
		return s
	}
	return TruncatedPrefix + strings.Join(tokens[len(tokens)-max:], "")
}

// KeepHead returns the first max tokens of s followed by TruncatedSuffix,
// or s unchanged when it already fits.
func KeepHead(s string, max int) string {
	if max <= 0 {
		return ""
	}
	tokens := Tokenize(s)
	if len(tokens) <= max {
		return s
	}
	return strings.Join(tokens[:max], "") + TruncatedSuffix
}
