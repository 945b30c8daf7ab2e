package utils

import (
	"strings"
	"unicode/utf8"
)

// tokenChars is the rough number of characters per token. Estimates only
// bound what is fed back to a model and match no real tokenizer.
const tokenChars = 4

// TruncationMarker ends text shortened by ClipTokens.
const TruncationMarker = " ...(truncated)"

// CountTokens estimates the number of tokens in text, rounding up.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + tokenChars - 1) / tokenChars
}

// ClipTokens shortens text to at most limit tokens, marker included, and
// reports whether it cut anything. The cut falls on a rune boundary, right
// after the last comma of the kept half when there is one, so a JSON lookup
// loses whole entries rather than half a name.
func ClipTokens(text string, limit int) (string, bool) {
	if CountTokens(text) <= limit {
		return text, false
	}
	budget := limit*tokenChars - utf8.RuneCountInString(TruncationMarker)
	if budget <= 0 {
		return strings.TrimSpace(TruncationMarker), true
	}
	cut := string([]rune(text)[:budget])
	if i := strings.LastIndexByte(cut, ','); i >= len(cut)/2 {
		cut = cut[:i+1]
	}
	return cut + TruncationMarker, true
}
