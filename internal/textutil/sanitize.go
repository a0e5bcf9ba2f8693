package textutil

import (
	"strings"
	"unicode/utf8"
)

// SanitizeToken reduces value to a lowercase ASCII token safe for file names:
// accents are folded, runs of anything else collapse to one underscore, and
// empty results become "unknown".
func SanitizeToken(value string) string {
	value = foldAccents(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// TruncateRunes shortens s to at most limit runes without splitting a
// multi-byte character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

var drawtextReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, `\\\'`,
	`:`, `\\:`,
	`%`, `\\%`,
	`,`, `\\,`,
	`[`, `\\[`,
	`]`, `\\]`,
	`;`, `\;`,
)

// EscapeDrawtext escapes text for the text= option of an ffmpeg drawtext
// filter embedded in a -filter_complex graph.
func EscapeDrawtext(text string) string {
	return drawtextReplacer.Replace(text)
}

// Words splits text on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}
