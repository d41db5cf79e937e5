package dataset

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxSlugRunes = 50

// Slug derives a filesystem-safe name from a topic: lowercase, reserved
// characters removed, whitespace runs replaced by underscores and at most 50
// runes. An empty result becomes "topic".
func Slug(topic string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		if strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		b.WriteRune(r)
	}

	slug := []rune(b.String())
	if len(slug) > maxSlugRunes {
		slug = slug[:maxSlugRunes]
	}
	out := strings.Trim(string(slug), "_.")
	if out == "" {
		return "topic"
	}
	return out
}

// Paths are the output files of one topic.
type Paths struct {
	Dataset   string
	Partial   string
	Synthesis string
}

// PathsFor returns the output files for topic inside dir.
func PathsFor(dir, topic string) Paths {
	slug := Slug(topic)
	return Paths{
		Dataset:   filepath.Join(dir, "dataset_"+slug+".json"),
		Partial:   filepath.Join(dir, "partial_"+slug+".txt"),
		Synthesis: filepath.Join(dir, "synthesis_"+slug+".txt"),
	}
}
