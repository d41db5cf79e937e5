package agents

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/ingestion"
	"github.com/jonathan/topic-digest/internal/llm"
)

// Defaults used when Options leaves a value at zero.
const (
	DefaultPageBlobBudget       = 3000
	DefaultStageInputBudget     = 8000
	DefaultSynthesisInputBudget = 12000
	DefaultMinContentLength     = 100
	DefaultReferenceExcerpt     = 1500
)

// ReasonNoContent marks a term without any usable page text.
const ReasonNoContent = "no usable content"

// Options configures a Pipeline.
type Options struct {
	Roles                Roles
	PageBlobBudget       int // characters one page contributes to a term blob
	StageInputBudget     int // characters of material per term stage
	SynthesisInputBudget int // characters of material for the synthesis
	MinContentLength     int // pages at or below this length are left out of blobs
	ReferenceExcerpt     int // blob characters shown to the organizer
	Logger               zerolog.Logger

	// OnTerm, when set, is called after every term reaches a terminal state.
	OnTerm func(index, total int, p *TermProgress)
}

// Result is the outcome of a pipeline run.
type Result struct {
	Terms       []*TermProgress
	Report      string // six-section report
	SynthesisOK bool
	Material    Material
	PartialErr  error // first failed partial-results write, if any
}

// Done counts terms that completed all stages.
func (r *Result) Done() int {
	n := 0
	for _, t := range r.Terms {
		if t.State == Done {
			n++
		}
	}
	return n
}

// Pipeline runs the per-term stages and the synthesis, strictly one call at
// a time.
type Pipeline struct {
	client llm.Client
	opts   Options
	log    zerolog.Logger
}

// NewPipeline creates a Pipeline calling client for every stage.
func NewPipeline(client llm.Client, opts Options) *Pipeline {
	if opts.PageBlobBudget <= 0 {
		opts.PageBlobBudget = DefaultPageBlobBudget
	}
	if opts.StageInputBudget <= 0 {
		opts.StageInputBudget = DefaultStageInputBudget
	}
	if opts.SynthesisInputBudget <= 0 {
		opts.SynthesisInputBudget = DefaultSynthesisInputBudget
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = DefaultMinContentLength
	}
	if opts.ReferenceExcerpt <= 0 {
		opts.ReferenceExcerpt = DefaultReferenceExcerpt
	}
	if opts.Roles.Summarizer.TemplateKey == "" {
		opts.Roles = DefaultRoles(Budgets{Summarize: 600, Analyze: 800, Organize: 700, Synthesize: 2000})
	}
	return &Pipeline{
		client: client,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "agents").Logger(),
	}
}

// RunTerms processes every term of ds in order, appending each completed term
// to partial. Terms found in resumed are not processed again; their stored
// outputs are reused. Cancellation is checked before each term and each
// stage; when it happens the terms processed so far are returned with the
// context error.
func (p *Pipeline) RunTerms(ctx context.Context, ds *dataset.Dataset, partial *PartialWriter, resumed []TermBlock) (*Result, error) {
	topic := ds.Metadata.Topic
	previous := make(map[string]TermBlock, len(resumed))
	for _, b := range resumed {
		previous[b.Term] = b
	}

	res := &Result{Terms: make([]*TermProgress, 0, len(ds.Terms))}
	total := len(ds.Terms)

	for i, t := range ds.Terms {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var progress *TermProgress
		if b, ok := previous[t.Term]; ok {
			progress = resumedProgress(b)
			p.log.Info().Str("term", t.Term).Msg("term reused from partial results")
		} else {
			blob := TermBlob(t.Records, p.opts.MinContentLength, p.opts.PageBlobBudget, p.opts.StageInputBudget)
			var err error
			progress, err = p.ProcessTerm(ctx, topic, t.Term, blob)
			if err != nil {
				res.Terms = append(res.Terms, progress)
				return res, err
			}
			if progress.State == Organized {
				if werr := p.appendPartial(partial, progress); werr != nil && res.PartialErr == nil {
					res.PartialErr = werr
				}
				_ = progress.Complete()
			}
		}

		res.Terms = append(res.Terms, progress)
		p.logTerm(i+1, total, progress)
		if p.opts.OnTerm != nil {
			p.opts.OnTerm(i+1, total, progress)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// ProcessTerm runs summarize, analyze and organize for one term. A term with
// an empty blob fails at summarize without any call. Service failures are
// replaced by markers and do not stop the chain; other errors move the term to
// Failed. The returned error is only the context error.
func (p *Pipeline) ProcessTerm(ctx context.Context, topic, term, blob string) (*TermProgress, error) {
	progress := NewTermProgress(term)
	if strings.TrimSpace(blob) == "" {
		progress.Fail(StageSummarize, ReasonNoContent)
		return progress, nil
	}

	inputs := map[Stage]func() map[string]string{
		StageSummarize: func() map[string]string {
			return map[string]string{"Term": term, "Topic": topic, "Content": blob}
		},
		StageAnalyze: func() map[string]string {
			s1, _ := progress.Output(StageSummarize)
			return map[string]string{"Term": term, "Topic": topic, "Summary": s1.Text, "Content": blob}
		},
		StageOrganize: func() map[string]string {
			s1, _ := progress.Output(StageSummarize)
			s2, _ := progress.Output(StageAnalyze)
			return map[string]string{
				"Term":      term,
				"Topic":     topic,
				"Summary":   s1.Text,
				"Analysis":  s2.Text,
				"Reference": ingestion.Truncate(blob, p.opts.ReferenceExcerpt),
			}
		},
	}

	for _, stage := range TermStages {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		role, _ := p.opts.Roles.ForStage(stage)
		out, err := Invoke(ctx, p.client, role, term, inputs[stage](), p.opts.StageInputBudget)
		if err != nil {
			p.log.Error().Err(err).Str("term", term).Str("stage", string(stage)).Msg("stage could not run")
			progress.Fail(stage, err.Error())
			return progress, nil
		}
		if !out.OK {
			p.log.Warn().Err(out.Err).Str("term", term).Str("stage", string(stage)).Msg("stage failed, marker substituted")
		} else {
			p.log.Debug().Str("term", term).Str("stage", string(stage)).Dur("elapsed", out.Elapsed).Int("chars", len(out.Text)).Msg("stage completed")
		}
		if err := progress.Record(out); err != nil {
			progress.Fail(stage, err.Error())
			return progress, nil
		}
	}
	return progress, nil
}

func (p *Pipeline) appendPartial(partial *PartialWriter, progress *TermProgress) error {
	if partial == nil {
		return nil
	}
	if err := partial.Append(progress.Block()); err != nil {
		p.log.Error().Err(err).Str("term", progress.Term).Msg("failed to append partial results")
		return err
	}
	return nil
}

// Synthesize makes the single synthesis call over every done term of res
// and stores the six-section report in res. It never fails: a failed call
// yields the report with every section set to the failure marker.
func (p *Pipeline) Synthesize(ctx context.Context, topic string, res *Result) {
	var blocks []TermBlock
	for _, t := range res.Terms {
		if t.State == Done {
			blocks = append(blocks, t.Block())
		}
	}

	if len(blocks) == 0 {
		p.log.Warn().Msg("no term produced material, writing report without synthesis")
		res.Report = EnforceSections("")
		return
	}

	res.Material = BuildMaterial(blocks, p.opts.SynthesisInputBudget)
	if res.Material.Truncated {
		p.log.Warn().
			Int("included", res.Material.Included).
			Int("blocks", len(blocks)).
			Msg("synthesis material truncated")
	}

	data := map[string]string{
		"Topic":     topic,
		"TermCount": strconv.Itoa(len(blocks)),
		"Sections":  strings.Join(Sections, "\n"),
		"Material":  res.Material.Text,
	}
	budget := p.opts.SynthesisInputBudget
	for key, value := range data {
		if key != "Material" {
			budget += ingestion.Length(value)
		}
	}
	out, err := Invoke(ctx, p.client, p.opts.Roles.Synthesizer, "", data, budget)

	switch {
	case err != nil:
		p.log.Error().Err(err).Msg("synthesis could not run")
		res.Report = EnforceSections("")
	case !out.OK:
		p.log.Warn().Err(out.Err).Msg("synthesis failed, markers substituted")
		res.Report = EnforceSections("")
	default:
		res.Report = EnforceSections(out.Text)
		res.SynthesisOK = true
	}
}

func (p *Pipeline) logTerm(index, total int, t *TermProgress) {
	ev := p.log.Info()
	if t.State == Failed {
		ev = p.log.Warn().Str("failed_stage", string(t.FailedStage)).Str("reason", t.Reason)
	}
	ev.Str("term", t.Term).
		Int("index", index).
		Int("of", total).
		Str("state", t.State.String()).
		Int("failed_stages", t.FailedStages()).
		Msg("term finished")
}
