package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var horizontalSpaceRe = regexp.MustCompile(`[ \t]+`)

// NormalizeWhitespace collapses every run of spaces and tabs into a single space.
// Unicode spaces such as NBSP count as spaces. Line breaks are kept so the text
// can still be split into lines.
func NormalizeWhitespace(text string) string {
	return horizontalSpaceRe.ReplaceAllString(strings.Map(plainSpace, text), " ")
}

// plainSpace maps every whitespace rune except line breaks to ' '
func plainSpace(r rune) rune {
	switch {
	case r == '\n' || r == '\r' || r == ' ':
		return r
	case unicode.IsSpace(r), unicode.Is(unicode.Z, r):
		return ' '
	case r >= 0x1c && r <= 0x1f:
		// ASCII information separators
		return ' '
	}
	return r
}

// Tokenize normalizes the text and splits it into trimmed, non-empty lines
func Tokenize(text string) []string {
	return splitLines(NormalizeWhitespace(text))
}

func splitLines(normalized string) []string {
	raw := strings.Split(normalized, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
