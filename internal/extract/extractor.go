// Package extract turns collected URLs into page records: a bounded
// fetch/retry loop, text extraction, a minimum-length quality filter and
// truncation to the page content budget.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/topic-digest/internal/crawling"
	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/fetch"
	"github.com/jonathan/topic-digest/internal/ingestion"
	"github.com/jonathan/topic-digest/internal/metrics"
)

// Defaults used when Options leaves a value at zero.
const (
	DefaultMaxAttempts      = 3
	DefaultRetryDelay       = 2 * time.Second
	DefaultMinContentLength = 100
	DefaultMaxPageContent   = 8000
)

// Options configures an Extractor.
type Options struct {
	Timeout          time.Duration // per attempt
	MaxAttempts      int
	RetryDelay       time.Duration // fixed wait between attempts
	MinContentLength int
	MaxPageContent   int

	// Browser, when set, re-fetches pages whose static text is too short.
	Browser fetch.Fetcher
	// Languages, when set, tags successful records with a language code.
	Languages *LanguageDetector

	Logger zerolog.Logger
	Now    func() time.Time
}

// Extractor fetches and extracts one URL at a time.
type Extractor struct {
	fetcher fetch.Fetcher
	opts    Options
	log     zerolog.Logger
}

// New creates an Extractor using fetcher for the primary fetch.
func New(fetcher fetch.Fetcher, opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = fetch.DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = DefaultMinContentLength
	}
	if opts.MaxPageContent <= 0 {
		opts.MaxPageContent = DefaultMaxPageContent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{
		fetcher: fetcher,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "extractor").Logger(),
	}
}

// ExtractTerms extracts every URL of terms in order and appends one record per
// attempted URL to ds. Cancellation is checked before each URL; on
// cancellation the records gathered so far stay in ds and the context error
// is returned.
func (e *Extractor) ExtractTerms(ctx context.Context, terms []crawling.TermURLs, ds *dataset.Dataset) error {
	for _, t := range terms {
		ds.AddTerm(t.Term)
		for i, u := range t.URLs {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := e.Extract(ctx, u)
			ds.AddRecord(t.Term, rec)
			if err != nil {
				return err
			}

			e.log.Info().
				Str("term", t.Term).
				Int("index", i+1).
				Int("of", len(t.URLs)).
				Str("url", u).
				Str("status", string(rec.Status)).
				Str("reason", rec.FailureReason).
				Int("length", rec.TextLength).
				Msg("page processed")
		}
	}
	return nil
}

// Extract produces the record for one URL. The only error returned is the
// context error when the run is cancelled during a retry wait; the record is
// then marked failed with the last failure seen.
func (e *Extractor) Extract(ctx context.Context, urlStr string) (dataset.PageRecord, error) {
	rec := dataset.PageRecord{URL: urlStr}

	out := e.fetchWithRetry(ctx, urlStr)
	rec.Attempts = out.attempts
	rec.FetchedAt = e.opts.Now().UTC()
	if out.result != nil {
		rec.HTTPStatus = out.result.StatusCode
	}
	if out.err != nil {
		return e.finish(classifyFailure(rec, out.err)), out.stopped
	}

	page, err := fetch.ParsePage(out.result.HTML, urlStr)
	if err != nil {
		e.log.Debug().Err(err).Str("url", urlStr).Msg("parse failed")
		return e.finish(skipped(rec, dataset.ReasonParse)), nil
	}

	if ingestion.Length(page.Text) < e.opts.MinContentLength && e.opts.Browser != nil {
		if rendered := e.render(ctx, urlStr); rendered != nil && ingestion.Length(rendered.Text) > ingestion.Length(page.Text) {
			page = rendered
		}
	}

	rec.Title = page.Title
	rec.Description = page.Description

	length := ingestion.Length(page.Text)
	if length < e.opts.MinContentLength {
		qerr := &QualityError{URL: urlStr, Length: length, Min: e.opts.MinContentLength}
		e.log.Debug().Err(qerr).Msg("page skipped")
		return e.finish(skipped(rec, dataset.ReasonTooShort)), nil
	}

	text := page.Text
	if length > e.opts.MaxPageContent {
		text = ingestion.Truncate(text, e.opts.MaxPageContent)
		rec.Truncated = true
	}
	rec.ExtractedText = text
	rec.TextLength = ingestion.Length(text)
	rec.Status = dataset.StatusSuccess
	rec.Language = e.opts.Languages.Detect(text)
	return e.finish(rec), nil
}

// fetchOutcome is the result of the retry loop for one URL.
type fetchOutcome struct {
	result   *fetch.Result
	attempts int
	err      error // last fetch failure
	stopped  error // context error when a retry wait was cancelled
}

// fetchWithRetry runs up to MaxAttempts bounded fetches with a fixed wait in
// between. Only retryable failures are retried.
func (e *Extractor) fetchWithRetry(ctx context.Context, urlStr string) fetchOutcome {
	var out fetchOutcome
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, e.opts.RetryDelay); err != nil {
				out.stopped = err
				return out
			}
		}

		metrics.FetchAttemptsTotal.Inc()
		out.attempts = attempt
		out.result, out.err = e.fetchOnce(ctx, urlStr)
		if out.err == nil {
			return out
		}

		var fe *fetch.Error
		if !errors.As(out.err, &fe) || !fe.Retryable() {
			return out
		}
		e.log.Debug().
			Err(out.err).
			Str("url", urlStr).
			Int("attempt", attempt).
			Int("max_attempts", e.opts.MaxAttempts).
			Msg("fetch attempt failed")
	}
	return out
}

// fetchOnce is detached from cancellation and bounded by the per-attempt
// timeout.
func (e *Extractor) fetchOnce(ctx context.Context, urlStr string) (*fetch.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.Timeout)
	defer cancel()
	return e.fetcher.Fetch(callCtx, urlStr)
}

func (e *Extractor) render(ctx context.Context, urlStr string) *fetch.Page {
	res, err := e.opts.Browser.Fetch(context.WithoutCancel(ctx), urlStr)
	if err != nil {
		e.log.Debug().Err(err).Str("url", urlStr).Msg("browser fetch failed")
		return nil
	}
	page, err := fetch.ParsePage(res.HTML, urlStr)
	if err != nil {
		return nil
	}
	return page
}

// classifyFailure maps a fetch failure to a failed or skipped record.
func classifyFailure(rec dataset.PageRecord, err error) dataset.PageRecord {
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return failed(rec, dataset.ReasonConnection)
	}
	if fe.StatusCode != 0 {
		rec.HTTPStatus = fe.StatusCode
	}
	if fe.Kind == fetch.KindUnsupported {
		return skipped(rec, dataset.ReasonUnsupported)
	}
	return failed(rec, string(fe.Kind))
}

func failed(rec dataset.PageRecord, reason string) dataset.PageRecord {
	rec.Status = dataset.StatusFailed
	rec.FailureReason = reason
	return rec
}

func skipped(rec dataset.PageRecord, reason string) dataset.PageRecord {
	rec.Status = dataset.StatusSkipped
	rec.FailureReason = reason
	return rec
}

func (e *Extractor) finish(rec dataset.PageRecord) dataset.PageRecord {
	metrics.RecordPage(string(rec.Status), rec.FailureReason)
	return rec
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
