package agents

import "fmt"

// State is the progress of one term through the stages.
type State int

const (
	NotStarted State = iota
	Summarized
	Analyzed
	Organized
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Summarized:
		return "summarized"
	case Analyzed:
		return "analyzed"
	case Organized:
		return "organized"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

var transitions = map[State]struct {
	stage Stage
	to    State
}{
	NotStarted: {StageSummarize, Summarized},
	Summarized: {StageAnalyze, Analyzed},
	Analyzed:   {StageOrganize, Organized},
}

// TransitionError reports a stage result applied out of order.
type TransitionError struct {
	Term  string
	From  State
	Stage Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("term %q: cannot apply %s in state %s", e.Term, e.Stage, e.From)
}

// TermProgress tracks one term. Outputs holds the stage results in order.
type TermProgress struct {
	Term        string
	State       State
	FailedStage Stage
	Reason      string
	Outputs     []StageOutput
	Resumed     bool // outputs were read back from the partial-results file
}

// NewTermProgress starts tracking term.
func NewTermProgress(term string) *TermProgress {
	return &TermProgress{Term: term, State: NotStarted}
}

// Record applies the output of the next stage.
func (p *TermProgress) Record(out StageOutput) error {
	step, ok := transitions[p.State]
	if !ok || step.stage != out.Stage {
		return &TransitionError{Term: p.Term, From: p.State, Stage: out.Stage}
	}
	p.Outputs = append(p.Outputs, out)
	p.State = step.to
	return nil
}

// Complete marks an organized term as done.
func (p *TermProgress) Complete() error {
	if p.State != Organized {
		return &TransitionError{Term: p.Term, From: p.State, Stage: "complete"}
	}
	p.State = Done
	return nil
}

// Fail moves a non-terminal term to Failed.
func (p *TermProgress) Fail(stage Stage, reason string) {
	if p.State.Terminal() {
		return
	}
	p.State = Failed
	p.FailedStage = stage
	p.Reason = reason
}

// Output returns the result of stage, if recorded.
func (p *TermProgress) Output(stage Stage) (StageOutput, bool) {
	for _, o := range p.Outputs {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutput{}, false
}

// FailedStages counts stage outputs that carry the failure marker.
func (p *TermProgress) FailedStages() int {
	n := 0
	for _, o := range p.Outputs {
		if !o.OK {
			n++
		}
	}
	return n
}

// Block returns the term's outputs in partial-results form.
func (p *TermProgress) Block() TermBlock {
	text := func(stage Stage) string {
		o, _ := p.Output(stage)
		return o.Text
	}
	return TermBlock{
		Term:         p.Term,
		Summary:      text(StageSummarize),
		Analysis:     text(StageAnalyze),
		Organization: text(StageOrganize),
	}
}

// resumedProgress rebuilds a done term from a partial-results block.
func resumedProgress(b TermBlock) *TermProgress {
	ok := func(s string, stage Stage) bool { return s != FailureMarker(stage) }
	return &TermProgress{
		Term:  b.Term,
		State: Done,
		Outputs: []StageOutput{
			{Term: b.Term, Stage: StageSummarize, Text: b.Summary, OK: ok(b.Summary, StageSummarize)},
			{Term: b.Term, Stage: StageAnalyze, Text: b.Analysis, OK: ok(b.Analysis, StageAnalyze)},
			{Term: b.Term, Stage: StageOrganize, Text: b.Organization, OK: ok(b.Organization, StageOrganize)},
		},
		Resumed: true,
	}
}
