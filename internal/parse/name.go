package parse

import (
	"regexp"
	"strings"
)

var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeName trims a free-text cell and collapses inner whitespace,
// including non-breaking spaces pasted from other documents.
func NormalizeName(raw string) string {
	s := strings.ReplaceAll(raw, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// NormalizeUsername returns the canonical form of an account identifier.
// A leading domain ("CORP\jdoe") is dropped and the result is lower-cased.
func NormalizeUsername(raw string) string {
	s := NormalizeName(raw)
	if i := strings.LastIndex(s, `\`); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}
