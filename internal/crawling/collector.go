package crawling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/topic-digest/internal/metrics"
	"github.com/jonathan/topic-digest/internal/research"
)

// DefaultSearchTimeout bounds one search request.
const DefaultSearchTimeout = 20 * time.Second

// TermURLs is the ordered list of unique URLs attributed to one term.
type TermURLs struct {
	Term string
	URLs []string
}

// Rejection is a search result that was not kept.
type Rejection struct {
	Term   string
	URL    string
	Reason string
}

// Collection is the result of collecting URLs for every term, in term order.
type Collection struct {
	Terms        []TermURLs
	Rejected     []Rejection
	SearchErrors []*SearchError
}

// TotalURLs returns the number of kept URLs across terms.
func (c *Collection) TotalURLs() int {
	n := 0
	for _, t := range c.Terms {
		n += len(t.URLs)
	}
	return n
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	PagesPerTerm  int
	SearchTimeout time.Duration
	Logger        zerolog.Logger
}

// Collector issues one search per term and keeps up to PagesPerTerm results,
// dropping URLs already owned by an earlier term and disallowed URLs.
type Collector struct {
	provider research.Provider
	opts     CollectorOptions
	log      zerolog.Logger
}

// NewCollector creates a Collector for provider.
func NewCollector(provider research.Provider, opts CollectorOptions) *Collector {
	if opts.PagesPerTerm <= 0 {
		opts.PagesPerTerm = 5
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	return &Collector{
		provider: provider,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "collector").Logger(),
	}
}

// Collect searches each term in order. seen is the run-scoped URL set shared
// with any earlier collection in the same run. A failed search leaves the
// term with no URLs. Cancellation is checked between terms; the partial
// collection is returned together with the context error.
func (c *Collector) Collect(ctx context.Context, terms []string, seen *URLSet) (*Collection, error) {
	if seen == nil {
		seen = NewURLSet()
	}
	out := &Collection{Terms: make([]TermURLs, 0, len(terms))}
	provider := c.provider.Name()

	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		entry := TermURLs{Term: term, URLs: []string{}}

		results, err := c.search(ctx, term)
		if err != nil {
			searchErr := &SearchError{Term: term, Provider: provider, Cause: err}
			out.SearchErrors = append(out.SearchErrors, searchErr)
			out.Terms = append(out.Terms, entry)
			metrics.SearchErrorsTotal.WithLabelValues(provider).Inc()
			c.log.Warn().Err(err).Str("term", term).Msg("search failed")
			continue
		}
		if len(results) > c.opts.PagesPerTerm {
			results = results[:c.opts.PagesPerTerm]
		}

		for _, r := range results {
			normalized, err := Normalize(r.URL)
			if err != nil {
				out.Rejected = append(out.Rejected, Rejection{Term: term, URL: r.URL, Reason: ReasonInvalid})
				metrics.SearchResultsTotal.WithLabelValues(provider, "filtered").Inc()
				continue
			}
			if reason, blocked := Disallowed(normalized); blocked {
				out.Rejected = append(out.Rejected, Rejection{Term: term, URL: normalized, Reason: reason})
				metrics.SearchResultsTotal.WithLabelValues(provider, "filtered").Inc()
				continue
			}
			if !seen.Add(normalized, term) {
				out.Rejected = append(out.Rejected, Rejection{Term: term, URL: normalized, Reason: ReasonDuplicate})
				metrics.SearchResultsTotal.WithLabelValues(provider, "duplicate").Inc()
				continue
			}
			entry.URLs = append(entry.URLs, normalized)
			metrics.SearchResultsTotal.WithLabelValues(provider, "accepted").Inc()
		}

		out.Terms = append(out.Terms, entry)
		c.log.Info().
			Str("term", term).
			Int("index", i+1).
			Int("results", len(results)).
			Int("kept", len(entry.URLs)).
			Msg("term collected")
	}

	return out, nil
}

// search runs one bounded provider call. The call is detached from ctx
// cancellation so it completes or times out on its own.
func (c *Collector) search(ctx context.Context, term string) ([]research.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SearchTimeout)
	defer cancel()
	return c.provider.Search(callCtx, term, c.opts.PagesPerTerm)
}
