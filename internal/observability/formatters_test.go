package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/topic-digest/internal/agents"
	"github.com/jonathan/topic-digest/internal/crawling"
	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/terms"
)

func TestPrintTerms(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTerms(terms.Result{Terms: []string{"go tutorial", "go documentation"}, Fallback: true})
	output := buf.String()

	assert.Contains(t, output, "SEARCH TERMS")
	assert.Contains(t, output, "1. go tutorial")
	assert.Contains(t, output, "2. go documentation")
	assert.Contains(t, output, "fallback")
}

func TestPrintTerms_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintTerms(terms.Result{})
	assert.Empty(t, buf.String())
}

func TestPrintCollection(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	c := &crawling.Collection{
		Terms: []crawling.TermURLs{
			{Term: "alpha", URLs: []string{"https://a.example/1", "https://a.example/2", "https://a.example/3",
				"https://a.example/4", "https://a.example/5", "https://a.example/6", "https://a.example/7"}},
			{Term: "beta", URLs: []string{}},
		},
		Rejected:     []crawling.Rejection{{Term: "beta", URL: "https://a.example/1", Reason: crawling.ReasonDuplicate}},
		SearchErrors: []*crawling.SearchError{{Term: "beta", Cause: errors.New("quota")}},
	}

	p.PrintCollection(c)
	output := buf.String()

	assert.Contains(t, output, "COLLECTED URLS")
	assert.Contains(t, output, "Unique URLs: 7")
	assert.Contains(t, output, "Rejected: 1")
	assert.Contains(t, output, "alpha (7)")
	assert.Contains(t, output, "... and 2 more")
	assert.Contains(t, output, "search failed: beta")
}

func TestPrintDatasetStats(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	ds := dataset.New("run", "Go", time.Now())
	ds.AddRecord("go tutorial", dataset.PageRecord{URL: "https://a", Status: dataset.StatusSuccess})
	ds.AddRecord("go tutorial", dataset.PageRecord{URL: "https://b", Status: dataset.StatusFailed, FailureReason: dataset.ReasonTimeout})
	ds.AddRecord("go tutorial", dataset.PageRecord{URL: "https://c", Status: dataset.StatusSkipped, FailureReason: dataset.ReasonTooShort})
	ds.AddRecord("go tutorial", dataset.PageRecord{URL: "https://d", Status: dataset.StatusSuccess})

	p.PrintDatasetStats(ds)
	output := buf.String()

	assert.Contains(t, output, "DATASET")
	assert.Contains(t, output, "Pages:    4")
	assert.Contains(t, output, "Success:  2 (50.0%)")
	assert.Contains(t, output, "Failed:   1")
	assert.Contains(t, output, "Skipped:  1")
	assert.Contains(t, output, "go tutorial: 2/4")
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	res := &agents.Result{
		Terms: []*agents.TermProgress{
			{Term: "alpha", State: agents.Done},
			{Term: "beta", State: agents.Failed, FailedStage: agents.StageSummarize, Reason: "no usable content"},
			{Term: "gamma", State: agents.Done, Resumed: true},
		},
		SynthesisOK: false,
	}

	p.PrintAnalysis(res)
	output := buf.String()

	assert.Contains(t, output, "MULTI-AGENT ANALYSIS")
	assert.Contains(t, output, "Completed 2 of 3 terms")
	assert.Contains(t, output, "✓ alpha")
	assert.Contains(t, output, "✗ beta [summarize: no usable content]")
	assert.Contains(t, output, "gamma (resumed)")
	assert.Contains(t, output, "synthesis unavailable")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), "line %q", line)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintOutputs(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintOutputs(dataset.PathsFor("out", "Go"))

	assert.Contains(t, buf.String(), "dataset_go.json")
	assert.Contains(t, buf.String(), "partial_go.txt")
	assert.Contains(t, buf.String(), "synthesis_go.txt")
}
