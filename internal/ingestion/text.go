// Package ingestion normalizes extracted page text and enforces the character
// budgets applied before text is stored or handed to the generation service.
package ingestion

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minFragment = 3

var (
	spaceRunRe = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText collapses whitespace inside lines, drops fragments of minFragment
// characters or fewer (stray icons, separators, "|", "»") and keeps at most
// one blank line between paragraphs.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line != "" && utf8.RuneCountInString(line) <= minFragment {
			continue
		}
		cleaned = append(cleaned, line)
	}

	result := strings.Join(cleaned, "\n")
	result = blankRunRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// CollapseWhitespace turns every whitespace run, newlines included, into a
// single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most limit runes of s. A non-positive limit disables
// truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// TruncateWithMarker truncates s to limit runes and appends marker when
// anything was cut. The marker counts toward the limit.
func TruncateWithMarker(s string, limit int, marker string) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	room := limit - utf8.RuneCountInString(marker)
	if room <= 0 {
		return Truncate(marker, limit)
	}
	return strings.TrimRightFunc(Truncate(s, room), func(r rune) bool { return r == ' ' || r == '\n' }) + marker
}

// Length returns the length of s in runes, the unit every budget uses.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
