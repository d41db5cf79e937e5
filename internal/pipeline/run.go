// Package pipeline provides the high-level orchestration of a topic digest
// run: terms, collection, extraction, the dataset file and the multi-agent
// analysis, one step at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/topic-digest/internal/agents"
	"github.com/jonathan/topic-digest/internal/config"
	"github.com/jonathan/topic-digest/internal/crawling"
	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/extract"
	"github.com/jonathan/topic-digest/internal/fetch"
	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/metrics"
	"github.com/jonathan/topic-digest/internal/persist"
	"github.com/jonathan/topic-digest/internal/pipeline/steps"
	"github.com/jonathan/topic-digest/internal/research"
	"github.com/jonathan/topic-digest/internal/terms"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Index    int    `json:"index,omitempty"`
	Total    int    `json:"total,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Topic  string
	Config config.Config // already merged with defaults
	Resume bool
	Logger zerolog.Logger

	OnProgress ProgressCallback

	// Collaborators built from Config when nil.
	Client  llm.Client
	Search  research.Provider
	Fetcher fetch.Fetcher
	Now     func() time.Time
}

// RunResult holds everything a run produced.
type RunResult struct {
	RunID      string
	Paths      dataset.Paths
	Terms      terms.Result
	Collection *crawling.Collection
	Dataset    *dataset.Dataset
	Analysis   *agents.Result
	Resumed    bool // dataset or term outputs were reused
	Errors     []error
}

// Stats counts the dataset's records.
func (r *RunResult) Stats() dataset.Stats {
	if r.Dataset == nil {
		return dataset.Stats{}
	}
	return r.Dataset.Stats()
}

type runner struct {
	opts    RunOptions
	cfg     config.Config
	log     zerolog.Logger
	tracker *steps.Tracker
	result  *RunResult
	client  llm.Client
	closers []func() error
}

// emitProgress calls the progress callback if configured
func (r *runner) emitProgress(step, message string, content any) {
	if r.opts.OnProgress == nil {
		return
	}
	def := steps.StepRegistry[step]
	index, total, _ := r.tracker.Begin(step)
	r.opts.OnProgress(ProgressEvent{
		Step:     step,
		Category: def.Category,
		Message:  message,
		Index:    index,
		Total:    total,
		RunID:    r.result.RunID,
		Content:  content,
	})
}

func (r *runner) begin(step string) error {
	if _, _, err := r.tracker.Begin(step); err != nil {
		return err
	}
	def := steps.StepRegistry[step]
	r.emitProgress(step, def.Description, nil)
	return nil
}

func (r *runner) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// RunPipeline orchestrates a full run for opts.Topic: term generation, URL
// collection, extraction, the dataset file, per-term analysis, synthesis and
// the final report. Configuration and credentials are checked before any
// network call or file creation; a *config.ConfigError is returned when they
// are not usable. Failures of single searches, pages or stage calls are
// recorded and do not stop the run. When ctx is cancelled the run stops at
// the next term, URL or stage boundary and returns the context error along
// with whatever was produced.
func RunPipeline(ctx context.Context, opts RunOptions) (*RunResult, error) {
	r, err := newRunner(opts, steps.RunPlan())
	if err != nil {
		return nil, err
	}
	defer r.close()

	var prior *dataset.Dataset
	if opts.Resume {
		if ds, err := persist.LoadDataset(r.result.Paths.Dataset); err == nil {
			if !ds.Metadata.Incomplete {
				if err := r.requireCredentials(false); err != nil {
					return nil, err
				}
				r.log.Info().Str("path", r.result.Paths.Dataset).Msg("resuming from existing dataset")
				return r.analyzeExisting(ctx, ds)
			}
			r.log.Info().
				Str("path", r.result.Paths.Dataset).
				Strs("pending", ds.Metadata.PendingTerms).
				Msg("resuming interrupted extraction")
			prior = ds
		}
	}

	if err := r.requireCredentials(true); err != nil {
		return nil, err
	}
	if err := r.connect(ctx, true); err != nil {
		return nil, err
	}
	if err := r.prepareOutput(); err != nil {
		return r.result, err
	}

	ds, err := r.crawl(ctx, prior)
	if ds != nil {
		r.save(ds)
	}
	if err != nil {
		return r.result, err
	}

	return r.result, r.analyze(ctx, ds)
}

// Summarize analyzes the dataset file already written for opts.Topic, skipping
// term generation, collection and extraction.
func Summarize(ctx context.Context, opts RunOptions) (*RunResult, error) {
	r, err := newRunner(opts, steps.SummarizePlan())
	if err != nil {
		return nil, err
	}
	defer r.close()
	if err := r.requireCredentials(false); err != nil {
		return nil, err
	}

	if err := r.begin(steps.LoadDataset); err != nil {
		return nil, err
	}
	ds, err := persist.LoadDataset(r.result.Paths.Dataset)
	if err != nil {
		return nil, err
	}
	r.tracker.Complete(steps.LoadDataset)
	return r.analyzeFrom(ctx, ds)
}

// analyzeExisting switches a resumed run to the summarize plan.
func (r *runner) analyzeExisting(ctx context.Context, ds *dataset.Dataset) (*RunResult, error) {
	tracker, err := steps.NewTracker(steps.SummarizePlan())
	if err != nil {
		return nil, err
	}
	r.tracker = tracker
	r.result.Resumed = true
	r.emitProgress(steps.LoadDataset, "Reusing dataset "+r.result.Paths.Dataset, nil)
	r.tracker.Complete(steps.LoadDataset)
	return r.analyzeFrom(ctx, ds)
}

func (r *runner) analyzeFrom(ctx context.Context, ds *dataset.Dataset) (*RunResult, error) {
	if err := r.connect(ctx, false); err != nil {
		return nil, err
	}
	if err := r.prepareOutput(); err != nil {
		return r.result, err
	}
	r.result.Dataset = ds
	r.result.RunID = ds.Metadata.RunID
	return r.result, r.analyze(ctx, ds)
}

func newRunner(opts RunOptions, plan []string) (*runner, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return nil, &config.ConfigError{Field: "topic", Message: "topic is empty"}
	}
	opts.Topic = topic

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tracker, err := steps.NewTracker(plan)
	if err != nil {
		return nil, err
	}

	return &runner{
		opts:    opts,
		cfg:     cfg,
		log:     opts.Logger.With().Str("component", "pipeline").Logger(),
		tracker: tracker,
		result: &RunResult{
			RunID: uuid.NewString(),
			Paths: dataset.PathsFor(cfg.OutputDir, topic),
		},
	}, nil
}

// requireCredentials checks the keys of the collaborators that were not
// injected. Search keys matter only when URLs will be collected.
func (r *runner) requireCredentials(needSearch bool) error {
	if r.opts.Client != nil {
		return nil
	}
	return r.cfg.RequireCredentials(needSearch && r.opts.Search == nil)
}

// connect builds the collaborators that were not injected.
func (r *runner) connect(ctx context.Context, needSearch bool) error {
	client := r.opts.Client
	if client == nil {
		created, err := NewGenerationClient(ctx, r.cfg)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, created.Close)
		client = created
	}
	r.client = llm.WithTimeout(client, r.cfg.GenerationTimeout.Duration)

	if needSearch && r.opts.Search == nil {
		provider, err := research.New(ctx, &r.cfg)
		if err != nil {
			return fmt.Errorf("failed to create search provider: %w", err)
		}
		r.opts.Search = provider
	}
	if needSearch && r.opts.Fetcher == nil {
		r.opts.Fetcher = fetch.NewHTTPFetcher(&fetch.Options{
			Timeout:      r.cfg.RequestTimeout.Duration,
			UserAgent:    r.cfg.UserAgent,
			MaxBodyBytes: fetch.DefaultMaxBodyBytes,
		})
	}
	return nil
}

func (r *runner) prepareOutput() error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return &persist.WriteError{Path: r.cfg.OutputDir, Message: "failed to create output directory", Cause: err}
	}
	return nil
}

// crawl runs term generation, collection and extraction. The returned dataset
// holds every record produced, also when the context error is returned; it is
// then marked incomplete with the terms whose extraction did not finish.
// A non-nil prior dataset is continued: its terms are reused and only its
// pending terms are collected again, skipping URLs it already holds.
func (r *runner) crawl(ctx context.Context, prior *dataset.Dataset) (*dataset.Dataset, error) {
	topic := r.opts.Topic

	if err := r.begin(steps.GenerateTerms); err != nil {
		return nil, err
	}
	if prior != nil {
		r.result.RunID = prior.Metadata.RunID
		r.result.Resumed = true
		r.result.Terms = terms.Result{Terms: prior.TermNames()}
		r.tracker.Complete(steps.GenerateTerms)
		r.emitProgress(steps.GenerateTerms, fmt.Sprintf("Reusing %d search terms", len(r.result.Terms.Terms)), r.result.Terms.Terms)
	} else {
		gen := terms.NewGenerator(r.client, r.cfg.TokenBudgets.Terms, r.opts.Logger)
		r.result.Terms = gen.Generate(ctx, topic, r.cfg.Terms)
		if r.result.Terms.Fallback {
			r.log.Warn().Err(r.result.Terms.Err).Strs("terms", r.result.Terms.Terms).Msg("using fallback search terms")
		}
		r.tracker.Complete(steps.GenerateTerms)
		r.emitProgress(steps.GenerateTerms, fmt.Sprintf("Generated %d search terms", len(r.result.Terms.Terms)), r.result.Terms.Terms)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.begin(steps.CollectURLs); err != nil {
		return nil, err
	}
	collector := crawling.NewCollector(r.opts.Search, crawling.CollectorOptions{
		PagesPerTerm:  r.cfg.PagesPerTerm,
		SearchTimeout: r.cfg.SearchTimeout.Duration,
		Logger:        r.opts.Logger,
	})
	seen := crawling.NewURLSet()
	toCollect := r.result.Terms.Terms
	if prior != nil {
		for u, term := range prior.URLs() {
			seen.Add(u, term)
		}
		toCollect = prior.Metadata.PendingTerms
	}
	collection, err := collector.Collect(ctx, toCollect, seen)
	r.result.Collection = collection
	for _, se := range collection.SearchErrors {
		r.result.Errors = append(r.result.Errors, se)
	}
	if err != nil {
		return nil, err
	}
	r.tracker.Complete(steps.CollectURLs)
	r.emitProgress(steps.CollectURLs, fmt.Sprintf("Collected %d unique URLs", collection.TotalURLs()), nil)

	if err := r.begin(steps.ExtractPages); err != nil {
		return nil, err
	}
	ds := prior
	if ds == nil {
		ds = dataset.New(r.result.RunID, topic, r.opts.Now())
		for _, t := range r.result.Terms.Terms {
			ds.AddTerm(t)
		}
	}
	r.result.Dataset = ds

	held := make(map[string]int, len(collection.Terms))
	for _, t := range collection.Terms {
		held[t.Term] = len(ds.Records(t.Term))
	}

	extractor := extract.New(r.opts.Fetcher, r.extractOptions())
	if err := extractor.ExtractTerms(ctx, collection.Terms, ds); err != nil {
		ds.Metadata.Incomplete = true
		ds.Metadata.PendingTerms = pendingTerms(ds, collection.Terms, held)
		return ds, err
	}
	ds.Metadata.Incomplete = false
	ds.Metadata.PendingTerms = nil
	r.tracker.Complete(steps.ExtractPages)

	stats := ds.Stats()
	r.emitProgress(steps.ExtractPages, fmt.Sprintf("Extracted %d pages: %d success, %d failed, %d skipped",
		stats.Total(), stats.Success, stats.Failed, stats.Skipped), stats)
	return ds, nil
}

// pendingTerms lists the collected terms that have fewer records than the
// held count plus their collected URLs.
func pendingTerms(ds *dataset.Dataset, collected []crawling.TermURLs, held map[string]int) []string {
	var pending []string
	for _, t := range collected {
		if len(ds.Records(t.Term)) < held[t.Term]+len(t.URLs) {
			pending = append(pending, t.Term)
		}
	}
	return pending
}

func (r *runner) extractOptions() extract.Options {
	opts := extract.Options{
		Timeout:          r.cfg.RequestTimeout.Duration,
		MaxAttempts:      r.cfg.MaxAttempts,
		RetryDelay:       r.cfg.RetryDelay.Duration,
		MinContentLength: r.cfg.MinContentLength,
		MaxPageContent:   r.cfg.MaxPageContent,
		Logger:           r.opts.Logger,
		Now:              r.opts.Now,
	}
	if r.cfg.UseBrowser {
		opts.Browser = fetch.NewBrowserFetcher(r.cfg.RequestTimeout.Duration*2, r.opts.Logger)
	}
	if r.cfg.DetectLanguage {
		opts.Languages = extract.NewLanguageDetector()
	}
	return opts
}

// save writes the dataset file. A failed write is recorded and the run
// continues with the in-memory dataset.
func (r *runner) save(ds *dataset.Dataset) {
	if _, _, err := r.tracker.Begin(steps.SaveDataset); err != nil {
		// Interrupted extraction: keep what was gathered anyway.
		r.log.Info().Msg("saving incomplete dataset")
	}
	if err := persist.SaveDataset(ds, r.result.Paths.Dataset); err != nil {
		r.log.Error().Err(err).Msg("failed to save dataset")
		r.result.Errors = append(r.result.Errors, err)
		return
	}
	r.tracker.Complete(steps.SaveDataset)
	r.emitProgress(steps.SaveDataset, "Saved dataset to "+r.result.Paths.Dataset, nil)
}

// analyze runs the agents over ds and writes the report.
func (r *runner) analyze(ctx context.Context, ds *dataset.Dataset) error {
	if !r.tracker.Done(steps.SaveDataset) && !r.tracker.Done(steps.LoadDataset) {
		// The dataset exists only in memory; analysis still runs on it.
		r.tracker.Complete(steps.SaveDataset)
	}
	if err := r.begin(steps.AnalyzeTerms); err != nil {
		return err
	}

	partial, resumed := r.openPartial(ds.Metadata.Topic)
	if partial != nil {
		defer func() { _ = partial.Close() }()
	}
	if len(resumed) > 0 {
		r.result.Resumed = true
	}

	pipe := agents.NewPipeline(r.client, agents.Options{
		Roles: agents.DefaultRoles(agents.Budgets{
			Summarize:  r.cfg.TokenBudgets.Summarize,
			Analyze:    r.cfg.TokenBudgets.Analyze,
			Organize:   r.cfg.TokenBudgets.Organize,
			Synthesize: r.cfg.TokenBudgets.Synthesize,
		}),
		PageBlobBudget:       r.cfg.PageBlobBudget,
		StageInputBudget:     r.cfg.StageInputBudget,
		SynthesisInputBudget: r.cfg.SynthesisInputBudget,
		MinContentLength:     r.cfg.MinContentLength,
		Logger:               r.opts.Logger,
		OnTerm: func(index, total int, p *agents.TermProgress) {
			msg := fmt.Sprintf("Term %d/%d %q: %s", index, total, p.Term, p.State)
			if p.State == agents.Failed {
				msg += fmt.Sprintf(" at %s (%s)", p.FailedStage, p.Reason)
			}
			r.emitProgress(steps.AnalyzeTerms, msg, p)
		},
	})

	res, err := pipe.RunTerms(ctx, ds, partial, resumed)
	r.result.Analysis = res
	if res != nil && res.PartialErr != nil {
		r.result.Errors = append(r.result.Errors, res.PartialErr)
	}
	if err != nil {
		return err
	}
	r.tracker.Complete(steps.AnalyzeTerms)

	if err := r.begin(steps.Synthesize); err != nil {
		return err
	}
	pipe.Synthesize(ctx, ds.Metadata.Topic, res)
	r.tracker.Complete(steps.Synthesize)

	if err := r.begin(steps.WriteReport); err != nil {
		return err
	}
	report := agents.FormatReport(res.Report, agents.ReportInfo{
		Topic:      ds.Metadata.Topic,
		Terms:      res.Done(),
		InputChars: len([]rune(res.Material.Text)),
		Source:     r.result.Paths.Dataset,
		Generated:  r.opts.Now(),
	})
	if err := persist.WriteFileAtomic(r.result.Paths.Synthesis, []byte(report), 0644); err != nil {
		r.log.Error().Err(err).Msg("failed to write final report")
		r.result.Errors = append(r.result.Errors, err)
	} else {
		r.tracker.Complete(steps.WriteReport)
		r.emitProgress(steps.WriteReport, "Saved final report to "+r.result.Paths.Synthesis, nil)
	}

	r.writeMetrics()
	return nil
}

// openPartial returns the writer for the partial-results file and, when
// resuming, the blocks already in it. A file that cannot be opened is
// recorded; the run continues without partial output.
func (r *runner) openPartial(topic string) (*agents.PartialWriter, []agents.TermBlock) {
	path := r.result.Paths.Partial

	if r.opts.Resume {
		blocks, err := agents.ReadPartial(path)
		if err != nil {
			r.log.Warn().Err(err).Msg("cannot read partial results, starting over")
		} else if len(blocks) > 0 {
			w, err := agents.AppendPartial(path)
			if err == nil {
				r.log.Info().Int("terms", len(blocks)).Msg("resuming from partial results")
				return w, blocks
			}
			r.log.Warn().Err(err).Msg("cannot append to partial results, starting over")
		}
	}

	w, err := agents.CreatePartial(path, topic, r.opts.Now())
	if err != nil {
		r.log.Error().Err(err).Msg("partial results disabled")
		r.result.Errors = append(r.result.Errors, err)
		return nil, nil
	}
	return w, nil
}

func (r *runner) writeMetrics() {
	if r.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
		r.log.Warn().Err(err).Msg("failed to write metrics")
		r.result.Errors = append(r.result.Errors, err)
	}
}

// NewGenerationClient creates the text-generation client selected by cfg.
func NewGenerationClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	llmCfg := llm.ConfigFor(cfg.LLMProvider)
	if cfg.Model != "" {
		llmCfg = llmCfg.WithSingleModel(cfg.Model)
	}
	llmCfg.BaseURL = cfg.LLMBaseURL

	client, err := llm.NewClient(ctx, llmCfg, cfg.LLMAPIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	return client, nil
}

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	var cfgErr *config.ConfigError
	return errors.As(err, &cfgErr)
}
