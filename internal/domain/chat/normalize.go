package chat

import (
	"strings"
	"unicode"
)

// normalizeQuestion lowercases, strips punctuation, and collapses whitespace
// so blank and near-blank inputs are rejected consistently.
func normalizeQuestion(q string) string {
	lowered := strings.ToLower(strings.TrimSpace(q))
	var builder strings.Builder
	builder.Grow(len(lowered))
	lastSpace := true
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	normalized := strings.TrimSpace(builder.String())
	return strings.Join(strings.Fields(normalized), " ")
}

// NormalizeQuestion is the exported form used for trending-stat keys.
func NormalizeQuestion(q string) string {
	return normalizeQuestion(q)
}
