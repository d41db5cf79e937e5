package agents

import (
	"strings"

	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/ingestion"
)

// TermBlob joins the usable text of a term's records: successful pages of at
// least minLength characters, the bar extraction applies, each cut to perPage characters, separated by blank lines.
// The whole blob is cut to budget. Zero limits disable the corresponding cut.
func TermBlob(records []dataset.PageRecord, minLength, perPage, budget int) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		if r.Status != dataset.StatusSuccess {
			continue
		}
		text := strings.TrimSpace(r.ExtractedText)
		if ingestion.Length(text) < minLength {
			continue
		}
		parts = append(parts, ingestion.Truncate(text, perPage))
	}
	return ingestion.Truncate(strings.Join(parts, "\n\n"), budget)
}
