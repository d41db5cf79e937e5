package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermProgress_Transitions(t *testing.T) {
	p := NewTermProgress("raft")
	assert.Equal(t, NotStarted, p.State)

	require.NoError(t, p.Record(StageOutput{Stage: StageSummarize, Text: "s", OK: true}))
	assert.Equal(t, Summarized, p.State)
	require.NoError(t, p.Record(StageOutput{Stage: StageAnalyze, Text: FailureMarker(StageAnalyze)}))
	assert.Equal(t, Analyzed, p.State)
	require.NoError(t, p.Record(StageOutput{Stage: StageOrganize, Text: "o", OK: true}))
	assert.Equal(t, Organized, p.State)
	require.NoError(t, p.Complete())
	assert.Equal(t, Done, p.State)
	assert.True(t, p.State.Terminal())

	p.Fail(StageOrganize, "ignored")
	assert.Equal(t, Done, p.State, "terminal states absorb")

	assert.Equal(t, TermBlock{Term: "raft", Summary: "s", Analysis: FailureMarker(StageAnalyze), Organization: "o"}, p.Block())
}

func TestTermProgress_OutOfOrder(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *TermProgress)
		apply func(p *TermProgress) error
	}{
		{
			name:  "analyze before summarize",
			setup: func(p *TermProgress) {},
			apply: func(p *TermProgress) error { return p.Record(StageOutput{Stage: StageAnalyze}) },
		},
		{
			name:  "summarize twice",
			setup: func(p *TermProgress) { _ = p.Record(StageOutput{Stage: StageSummarize}) },
			apply: func(p *TermProgress) error { return p.Record(StageOutput{Stage: StageSummarize}) },
		},
		{
			name:  "complete too early",
			setup: func(p *TermProgress) { _ = p.Record(StageOutput{Stage: StageSummarize}) },
			apply: func(p *TermProgress) error { return p.Complete() },
		},
		{
			name:  "record after failure",
			setup: func(p *TermProgress) { p.Fail(StageSummarize, "boom") },
			apply: func(p *TermProgress) error { return p.Record(StageOutput{Stage: StageSummarize}) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTermProgress("raft")
			tt.setup(p)
			err := tt.apply(p)
			var terr *TransitionError
			assert.True(t, errors.As(err, &terr))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not-started", NotStarted.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestResumedProgress(t *testing.T) {
	p := resumedProgress(TermBlock{Term: "raft", Summary: "s", Analysis: FailureMarker(StageAnalyze), Organization: "o"})
	assert.Equal(t, Done, p.State)
	assert.True(t, p.Resumed)
	assert.Equal(t, 1, p.FailedStages())
}
