// Package dataset defines the crawl/extract output of a run: page records
// grouped by search term, plus run metadata.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Version is written into every dataset's metadata.
const Version = "2.0"

// Status is the outcome of one page.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Failure and skip reasons.
const (
	ReasonTimeout     = "timeout"
	ReasonConnection  = "connection-error"
	ReasonHTTP        = "http-error"
	ReasonInvalidURL  = "invalid-url"
	ReasonUnsupported = "unsupported-content"
	ReasonParse       = "parse-error"
	ReasonTooShort    = "too-short"
)

// PageRecord is one page's extracted text and its fetch/parse outcome. It is
// not modified after creation.
type PageRecord struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	ExtractedText string    `json:"extracted_text"`
	TextLength    int       `json:"text_length"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	HTTPStatus    int       `json:"http_status,omitempty"`
	Attempts      int       `json:"attempts"`
	Language      string    `json:"language,omitempty"`
	Truncated     bool      `json:"truncated,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Metadata describes the run that produced a dataset.
type Metadata struct {
	RunID        string    `json:"run_id"`
	Topic        string    `json:"topic"`
	Timestamp    time.Time `json:"timestamp"`
	TermCount    int       `json:"term_count"`
	URLCount     int       `json:"url_count"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
	Version      string    `json:"version"`
	// Incomplete marks a dataset saved after extraction was interrupted.
	// PendingTerms then names the terms whose URLs were not all processed.
	Incomplete   bool     `json:"incomplete,omitempty"`
	PendingTerms []string `json:"pending_terms,omitempty"`
}

// TermRecords holds the records of one term in URL-processing order.
type TermRecords struct {
	Term    string
	Records []PageRecord
}

// Dataset is the complete structured output of the crawl/extract phase. Terms
// keep generation order, which is also the key order in the JSON form.
type Dataset struct {
	Metadata Metadata
	Terms    []TermRecords
}

// New creates an empty dataset for topic.
func New(runID, topic string, now time.Time) *Dataset {
	return &Dataset{
		Metadata: Metadata{
			RunID:     runID,
			Topic:     topic,
			Timestamp: now.UTC(),
			Version:   Version,
		},
		Terms: []TermRecords{},
	}
}

// AddTerm appends term with no records unless it is already present.
func (d *Dataset) AddTerm(term string) {
	if d.index(term) >= 0 {
		return
	}
	d.Terms = append(d.Terms, TermRecords{Term: term, Records: []PageRecord{}})
}

// AddRecord appends rec to term's list, adding the term if needed.
func (d *Dataset) AddRecord(term string, rec PageRecord) {
	i := d.index(term)
	if i < 0 {
		d.AddTerm(term)
		i = len(d.Terms) - 1
	}
	d.Terms[i].Records = append(d.Terms[i].Records, rec)
}

// Records returns term's records, or nil when the term is unknown.
func (d *Dataset) Records(term string) []PageRecord {
	if i := d.index(term); i >= 0 {
		return d.Terms[i].Records
	}
	return nil
}

// URLs returns the URL of every record, keyed to the term that holds it.
func (d *Dataset) URLs() map[string]string {
	urls := make(map[string]string)
	for _, t := range d.Terms {
		for _, r := range t.Records {
			if _, ok := urls[r.URL]; !ok {
				urls[r.URL] = t.Term
			}
		}
	}
	return urls
}

// TermNames returns the terms in order.
func (d *Dataset) TermNames() []string {
	names := make([]string, len(d.Terms))
	for i, t := range d.Terms {
		names[i] = t.Term
	}
	return names
}

func (d *Dataset) index(term string) int {
	for i, t := range d.Terms {
		if t.Term == term {
			return i
		}
	}
	return -1
}

// Stats counts records by status.
type Stats struct {
	Success int
	Failed  int
	Skipped int
}

// Total is the number of attempted URLs.
func (s Stats) Total() int {
	return s.Success + s.Failed + s.Skipped
}

// SuccessRate is Success/Total in percent, or 0 for an empty set.
func (s Stats) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Success) * 100 / float64(s.Total())
}

func (s *Stats) add(status Status) {
	switch status {
	case StatusSuccess:
		s.Success++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// TermStats counts the records of one term.
func (d *Dataset) TermStats(term string) Stats {
	var s Stats
	for _, r := range d.Records(term) {
		s.add(r.Status)
	}
	return s
}

// Stats counts every record.
func (d *Dataset) Stats() Stats {
	var s Stats
	for _, t := range d.Terms {
		for _, r := range t.Records {
			s.add(r.Status)
		}
	}
	return s
}

// UpdateCounts recomputes the metadata counters from the records.
func (d *Dataset) UpdateCounts() {
	s := d.Stats()
	d.Metadata.TermCount = len(d.Terms)
	d.Metadata.URLCount = s.Total()
	d.Metadata.SuccessCount = s.Success
	d.Metadata.FailedCount = s.Failed
	d.Metadata.SkippedCount = s.Skipped
}

// MarshalJSON writes {"metadata": ..., "terms": {term: [records...]}} with
// terms in dataset order.
func (d Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"metadata":`)
	buf.Write(meta)
	buf.WriteString(`,"terms":{`)

	for i, t := range d.Terms {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t.Term)
		if err != nil {
			return nil, err
		}
		records := t.Records
		if records == nil {
			records = []PageRecord{}
		}
		value, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the form written by MarshalJSON, keeping the key order
// of "terms".
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw struct {
		Metadata Metadata        `json:"metadata"`
		Terms    json.RawMessage `json:"terms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Metadata = raw.Metadata
	d.Terms = []TermRecords{}
	if len(raw.Terms) == 0 || string(raw.Terms) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Terms))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("dataset terms must be an object")
	}

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read term key: %w", err)
		}
		term, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected term key %v", tok)
		}
		if seen[term] {
			return fmt.Errorf("duplicate term %q", term)
		}
		seen[term] = true

		records := []PageRecord{}
		if err := dec.Decode(&records); err != nil {
			return fmt.Errorf("failed to read records for %q: %w", term, err)
		}
		if records == nil {
			records = []PageRecord{}
		}
		d.Terms = append(d.Terms, TermRecords{Term: term, Records: records})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("unterminated terms object: %w", err)
	}
	return nil
}
