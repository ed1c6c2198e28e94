// Package worddiff detects which words appeared in or disappeared from a
// text between two versions.
package worddiff

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tokenize lowercases text, splits it on whitespace and strips every
// character that is not an ASCII letter, digit or underscore from each
// piece. Pieces left empty are dropped. Tokens keep their left-to-right
// order.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	// A Caser is stateful, so each call gets its own.
	lowered := cases.Lower(language.Und).String(text)

	fields := strings.FieldsFunc(lowered, isSpace)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if token := stripNonWord(field); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Count returns the number of occurrences of each token.
func Count(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}

func stripNonWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isWordByte(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Multi-byte UTF-8 sequences never contain ASCII bytes, so checking
// bytes is enough to drop every non-ASCII rune.
func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// isSpace matches the whitespace set browsers use for \s, which differs
// from unicode.IsSpace at U+0085 and U+FEFF.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00A0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}
