// Package observability provides logging setup and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/topic-digest/internal/agents"
	"github.com/jonathan/topic-digest/internal/crawling"
	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/terms"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes, ending with "..." when cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintTerms outputs the search terms of a run.
func (p *Printer) PrintTerms(res terms.Result) {
	if len(res.Terms) == 0 {
		return
	}

	var sb strings.Builder
	if res.Fallback {
		sb.WriteString("Generated from fallback qualifiers\n\n")
	}
	for i, t := range res.Terms {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t))
	}

	p.printBox("SEARCH TERMS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCollection outputs the URLs kept per term.
func (p *Printer) PrintCollection(c *crawling.Collection) {
	if c == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Unique URLs: %d   Rejected: %d\n\n", c.TotalURLs(), len(c.Rejected)))

	for _, t := range c.Terms {
		sb.WriteString(fmt.Sprintf("%s (%d)\n", t.Term, len(t.URLs)))
		count := min(len(t.URLs), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", t.URLs[i]))
		}
		if len(t.URLs) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(t.URLs)-maxItemsToShow))
		}
	}
	for _, se := range c.SearchErrors {
		sb.WriteString(fmt.Sprintf("⚠ search failed: %s\n", se.Term))
	}

	p.printBox("COLLECTED URLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDatasetStats outputs extraction outcome counts for the whole dataset
// and for each term.
func (p *Printer) PrintDatasetStats(ds *dataset.Dataset) {
	if ds == nil {
		return
	}

	stats := ds.Stats()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topic:    %s\n", ds.Metadata.Topic))
	sb.WriteString(fmt.Sprintf("Pages:    %d\n", stats.Total()))
	sb.WriteString(fmt.Sprintf("Success:  %d (%.1f%%)\n", stats.Success, stats.SuccessRate()))
	sb.WriteString(fmt.Sprintf("Failed:   %d\n", stats.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:  %d\n", stats.Skipped))

	names := ds.TermNames()
	if len(names) > 0 {
		sb.WriteString("\n")
	}
	for _, name := range names {
		ts := ds.TermStats(name)
		sb.WriteString(fmt.Sprintf("%s: %d/%d\n", name, ts.Success, ts.Total()))
	}

	p.printBox("DATASET", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnalysis outputs the per-term state after the agent stages.
func (p *Printer) PrintAnalysis(res *agents.Result) {
	if res == nil || len(res.Terms) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Completed %d of %d terms\n\n", res.Done(), len(res.Terms)))

	for _, t := range res.Terms {
		switch {
		case t.State == agents.Failed:
			sb.WriteString(fmt.Sprintf("✗ %s [%s: %s]\n", t.Term, t.FailedStage, t.Reason))
		case t.Resumed:
			sb.WriteString(fmt.Sprintf("✓ %s (resumed)\n", t.Term))
		default:
			sb.WriteString(fmt.Sprintf("✓ %s", t.Term))
			if n := t.FailedStages(); n > 0 {
				sb.WriteString(fmt.Sprintf(" [%d stage markers]", n))
			}
			sb.WriteString("\n")
		}
	}

	if !res.SynthesisOK {
		sb.WriteString("\n⚠ synthesis unavailable, report holds failure markers")
	} else if res.Material.Truncated {
		sb.WriteString(fmt.Sprintf("\nSynthesis input truncated after %d terms", res.Material.Included))
	}

	p.printBox("MULTI-AGENT ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOutputs lists the files written by a run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintOutputs(paths dataset.Paths) {
	fmt.Fprintf(p.out, "Dataset:  %s\n", paths.Dataset)
	fmt.Fprintf(p.out, "Partial:  %s\n", paths.Partial)
	fmt.Fprintf(p.out, "Report:   %s\n", paths.Synthesis)
}
