package agents

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/llm"
)

var errService = &llm.ServiceError{Provider: "stub", Message: "quota exceeded", Cause: errors.New("429")}

// stubClient answers by stage. fail decides which calls error.
type stubClient struct {
	calls []call
	fail  func(stage Stage, input string) bool
}

type call struct {
	Stage Stage
	Req   llm.Request
}

func (c *stubClient) Generate(_ context.Context, req llm.Request) (string, error) {
	stage := stageOf(req)
	c.calls = append(c.calls, call{Stage: stage, Req: req})
	if c.fail != nil && c.fail(stage, req.Input) {
		return "", errService
	}
	if stage == StageSynthesize {
		var sb strings.Builder
		for _, s := range Sections {
			sb.WriteString(s + "\nBody of " + s + "\n\n")
		}
		return sb.String(), nil
	}
	return "  " + string(stage) + " output  ", nil
}

func (c *stubClient) Close() error { return nil }

func (c *stubClient) stages() []Stage {
	out := make([]Stage, len(c.calls))
	for i, cl := range c.calls {
		out[i] = cl.Stage
	}
	return out
}

func (c *stubClient) last(stage Stage) llm.Request {
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].Stage == stage {
			return c.calls[i].Req
		}
	}
	return llm.Request{}
}

func stageOf(req llm.Request) Stage {
	roles := DefaultRoles(Budgets{})
	for _, r := range []Role{roles.Summarizer, roles.Analyst, roles.Organizer, roles.Synthesizer} {
		if p, err := r.Persona(); err == nil && p == req.Persona {
			return r.Stage
		}
	}
	return ""
}

func longText(word string) string {
	return strings.Repeat(word+" is explained in depth here. ", 10)
}

func testDataset(terms ...string) *dataset.Dataset {
	ds := dataset.New("run", "distributed systems", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	for _, term := range terms {
		ds.AddRecord(term, dataset.PageRecord{
			URL:           "https://example.com/" + strings.ReplaceAll(term, " ", "-"),
			ExtractedText: longText(term),
			Status:        dataset.StatusSuccess,
		})
	}
	return ds
}
