package agents

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	partialTitle = "PARTIAL RESULTS - MULTI-AGENT PIPELINE"
	termPrefix   = "TERM: "
	labelSummary = "[SUMMARY]"
	labelAnalyze = "[ANALYSIS]"
	labelOrganiz = "[ORGANIZATION]"
	dateLayout   = "2006-01-02 15:04:05"
)

var (
	headerRule = strings.Repeat("=", 80)
	termRule   = strings.Repeat("=", 50)
	escapeRule = strings.Repeat("-", 80)
)

// TermBlock is one completed term in the partial-results file.
type TermBlock struct {
	Term         string
	Summary      string
	Analysis     string
	Organization string
}

// FormatBlock renders b in the partial-results layout. Lines of stage text
// that would read as a block boundary are rewritten.
func FormatBlock(b TermBlock) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(termPrefix + b.Term + "\n")
	sb.WriteString(termRule + "\n\n")
	sb.WriteString(labelSummary + "\n" + escapeBoundaries(b.Summary) + "\n\n")
	sb.WriteString(labelAnalyze + "\n" + escapeBoundaries(b.Analysis) + "\n\n")
	sb.WriteString(labelOrganiz + "\n" + escapeBoundaries(b.Organization) + "\n\n")
	sb.WriteString(headerRule + "\n")
	return sb.String()
}

func escapeBoundaries(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == headerRule:
			lines[i] = escapeRule
		case strings.HasPrefix(line, termPrefix), line == labelSummary, line == labelAnalyze, line == labelOrganiz:
			lines[i] = " " + line
		}
	}
	return strings.Join(lines, "\n")
}

// PartialWriter appends term blocks to the partial-results file. Each block
// is synced to disk before Append returns.
type PartialWriter struct {
	path string
	f    *os.File
}

// CreatePartial creates (or truncates) the file at path and writes the header.
func CreatePartial(path, topic string, now time.Time) (*PartialWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create partial results %s: %w", path, err)
	}
	w := &PartialWriter{path: path, f: f}

	header := fmt.Sprintf("%s\nTopic: %s\nDate: %s\n%s\n", partialTitle, topic, now.Format(dateLayout), headerRule)
	if err := w.write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// AppendPartial opens an existing partial-results file for appending.
func AppendPartial(path string) (*PartialWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open partial results %s: %w", path, err)
	}
	return &PartialWriter{path: path, f: f}, nil
}

// Path returns the file path.
func (w *PartialWriter) Path() string {
	return w.path
}

// Append writes one block and syncs it.
func (w *PartialWriter) Append(b TermBlock) error {
	return w.write(FormatBlock(b))
}

func (w *PartialWriter) write(s string) error {
	if _, err := w.f.WriteString(s); err != nil {
		return fmt.Errorf("failed to write partial results %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync partial results %s: %w", w.path, err)
	}
	return nil
}

// Close closes the file.
func (w *PartialWriter) Close() error {
	return w.f.Close()
}

// ReadPartial returns the complete blocks of a partial-results file in file
// order. A block cut off by an interrupted write is ignored, also when a later
// block was appended after it. A missing file yields no blocks and no error.
func ReadPartial(path string) ([]TermBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open partial results %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var (
		blocks  []TermBlock
		current []string
		term    string
		inBlock bool
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, termPrefix):
			// Stage text never starts with the prefix, so an open block was torn.
			term = strings.TrimPrefix(line, termPrefix)
			current = current[:0]
			inBlock = true
		case inBlock && line == headerRule:
			if b, ok := parseBlock(term, current); ok {
				blocks = append(blocks, b)
			}
			inBlock = false
		case inBlock:
			current = append(current, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partial results %s: %w", path, err)
	}
	return blocks, nil
}

// parseBlock splits a block body at its three labels.
func parseBlock(term string, lines []string) (TermBlock, bool) {
	labels := []string{labelSummary, labelAnalyze, labelOrganiz}
	sections := make([][]string, len(labels))
	idx := -1
	for _, line := range lines {
		if idx+1 < len(labels) && line == labels[idx+1] {
			idx++
			continue
		}
		if idx >= 0 {
			sections[idx] = append(sections[idx], line)
		}
	}
	if idx != len(labels)-1 {
		return TermBlock{}, false
	}
	text := func(i int) string {
		return strings.TrimSpace(strings.Join(sections[i], "\n"))
	}
	return TermBlock{
		Term:         term,
		Summary:      text(0),
		Analysis:     text(1),
		Organization: text(2),
	}, true
}
