package parser

import (
	"strings"
)

const (
	ProblemDelimiter = ";"
	TopTaskDelimiter = "~!~"

	// legacySplits is the number of leading fields of the legacy email layout
	// that are never free text.
	legacySplits = 8
)

// SanitizeLegacyDelimited splits text on ";" at most legacySplits times and
// replaces every ";" left in the final remainder with ":". A free-text
// details field carrying semicolons can then no longer fragment the
// positional parse. Texts with fewer than legacySplits delimiters are
// returned unchanged.
func SanitizeLegacyDelimited(text string) string {
	parts := strings.SplitN(text, ProblemDelimiter, legacySplits+1)
	if len(parts) < legacySplits+1 {
		return text
	}
	parts[legacySplits] = strings.ReplaceAll(parts[legacySplits], ProblemDelimiter, ":")
	return strings.Join(parts, ProblemDelimiter)
}

// WidenSemicolons rewrites ";" as "; " unless the text already uses the
// TopTask delimiter.
func WidenSemicolons(text string) string {
	if strings.Contains(text, TopTaskDelimiter) {
		return text
	}
	return strings.ReplaceAll(text, ";", "; ")
}

// StripDelimiter replaces the Problem delimiter inside a single field value.
func StripDelimiter(value, replacement string) string {
	return strings.ReplaceAll(value, ProblemDelimiter, replacement)
}
