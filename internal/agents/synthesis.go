package agents

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/topic-digest/internal/ingestion"
)

// Sections are the six headings of every final report, in order.
var Sections = []string{
	"## 1. EXECUTIVE SUMMARY",
	"## 2. KEY INSIGHTS BY THEME",
	"## 3. TRENDS AND PATTERNS",
	"## 4. STRATEGIC RECOMMENDATIONS",
	"## 5. CONNECTIONS AND INTERRELATIONS",
	"## 6. CONCLUSIONS AND OPEN QUESTIONS",
}

const (
	materialSeparatorWidth = 60
	// truncationReserve is kept free after the last whole block.
	truncationReserve = 100
	// minPartialBlock is the least room worth filling with a cut block.
	minPartialBlock = 200
	blockTruncated  = "\n\n[TRUNCATED]"
)

var materialSeparator = "\n\n" + strings.Repeat("=", materialSeparatorWidth) + "\n\n"

// SynthesisBlock renders one term's outputs as synthesis input.
func SynthesisBlock(b TermBlock) string {
	return fmt.Sprintf("TERM: %s\nSUMMARY: %s\nANALYSIS: %s\nORGANIZATION: %s",
		b.Term, b.Summary, b.Analysis, b.Organization)
}

// Material is the combined synthesis input.
type Material struct {
	Text      string
	Included  int  // blocks included, the last one possibly cut
	Truncated bool // some block was cut or left out
}

// BuildMaterial joins the term blocks while they fit budget. Whole blocks are
// kept in order; the first block that does not fit is included in part only
// when more than minPartialBlock characters of room remain.
func BuildMaterial(blocks []TermBlock, budget int) Material {
	var (
		parts []string
		used  int
		m     Material
	)
	sepLen := ingestion.Length(materialSeparator)

	for i, b := range blocks {
		text := SynthesisBlock(b)
		cost := ingestion.Length(text)
		if i > 0 {
			cost += sepLen
		}

		if budget <= 0 || used+cost <= budget {
			parts = append(parts, text)
			used += cost
			continue
		}

		m.Truncated = true
		room := budget - used - truncationReserve
		if i > 0 {
			room -= sepLen
		}
		if room > minPartialBlock {
			parts = append(parts, ingestion.Truncate(text, room)+blockTruncated)
		}
		break
	}

	m.Text = strings.Join(parts, materialSeparator)
	m.Included = len(parts)
	return m
}

var headingRe = regexp.MustCompile(`^\s*#{0,6}\s*(\d)\s*[.)]\s*(.+?)\s*$`)

// sectionIndex returns the position of the heading line names, or -1.
func sectionIndex(line string) int {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return -1
	}
	title := strings.ToUpper(strings.Trim(m[2], "*: "))
	for i, s := range Sections {
		want := strings.TrimSpace(strings.SplitN(s, ".", 2)[1])
		if m[1] == fmt.Sprint(i+1) && title == want {
			return i
		}
	}
	return -1
}

// EnforceSections rewrites a generated report so that each of the six
// headings appears exactly once and in order. Text under a recognised
// heading is kept; repeated headings are dropped and their text stays in the
// section being read; text before the first heading joins section 1. A
// section with no text gets the synthesis failure marker.
func EnforceSections(report string) string {
	bodies := make([][]string, len(Sections))
	seen := make([]bool, len(Sections))
	var preamble []string
	current := -1

	for _, line := range strings.Split(report, "\n") {
		if i := sectionIndex(line); i >= 0 {
			if !seen[i] {
				seen[i] = true
				current = i
			}
			continue
		}
		if current < 0 {
			preamble = append(preamble, line)
			continue
		}
		bodies[current] = append(bodies[current], line)
	}
	bodies[0] = append(preamble, bodies[0]...)

	marker := FailureMarker(StageSynthesize)
	out := make([]string, 0, len(Sections))
	for i, heading := range Sections {
		body := strings.TrimSpace(strings.Join(bodies[i], "\n"))
		if body == "" {
			body = marker
		}
		out = append(out, heading+"\n\n"+body)
	}
	return strings.Join(out, "\n\n")
}

// CountSections returns how many lines of report are one of the six headings.
func CountSections(report string) int {
	n := 0
	for _, line := range strings.Split(report, "\n") {
		for _, s := range Sections {
			if strings.TrimSpace(line) == s {
				n++
			}
		}
	}
	return n
}

// ReportInfo is written in the footer of the final report file.
type ReportInfo struct {
	Topic      string
	Terms      int
	InputChars int
	Source     string
	Generated  time.Time
}

// FormatReport wraps a report with the final file's header and footer.
func FormatReport(report string, info ReportInfo) string {
	var sb strings.Builder
	sb.WriteString("FINAL SYNTHESIS - MULTI-AGENT PIPELINE\n")
	sb.WriteString("Topic: " + info.Topic + "\n")
	sb.WriteString("Date: " + info.Generated.Format(dateLayout) + "\n")
	sb.WriteString(headerRule + "\n\n")
	sb.WriteString(strings.TrimSpace(report))
	sb.WriteString("\n\n" + headerRule + "\n")
	sb.WriteString("PROCESSING METADATA\n")
	fmt.Fprintf(&sb, "  Terms processed: %d\n", info.Terms)
	sb.WriteString("  Stages: 4 (summarizer, analyst, organizer, synthesizer)\n")
	fmt.Fprintf(&sb, "  Input characters: %d\n", info.InputChars)
	if info.Source != "" {
		sb.WriteString("  Source dataset: " + info.Source + "\n")
	}
	sb.WriteString("  Generated: " + info.Generated.Format(time.RFC3339) + "\n")
	return sb.String()
}
