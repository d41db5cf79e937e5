package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/topic-digest/internal/ingestion"
	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/metrics"
	"github.com/jonathan/topic-digest/internal/prompts"
)

// truncatedMarker ends an input that was cut to its budget.
const truncatedMarker = "\n[TRUNCATED]"

// StageOutput is the result of one stage call. When OK is false, Text is the
// stage's failure marker and Err holds the service error.
type StageOutput struct {
	Term    string
	Stage   Stage
	Text    string
	OK      bool
	Err     error
	Elapsed time.Duration
}

// Invoke renders role's input template with data, truncates it and calls
// the generation service once. budget limits the characters contributed by
// data; the template's own text comes on top. Service failures and empty
// answers become the failure marker and are not returned as errors. The
// returned error is reserved for problems that make the call impossible,
// such as a missing template or persona.
func Invoke(ctx context.Context, client llm.Client, role Role, term string, data map[string]string, budget int) (StageOutput, error) {
	out := StageOutput{Term: term, Stage: role.Stage}

	if client == nil {
		return out, errors.New("no generation client configured")
	}
	persona, err := role.Persona()
	if err != nil {
		return out, fmt.Errorf("%s persona: %w", role.Name, err)
	}
	input, err := renderInput(role.TemplateKey, data, budget)
	if err != nil {
		return out, fmt.Errorf("%s input: %w", role.Name, err)
	}

	start := time.Now()
	text, err := client.Generate(ctx, llm.Request{
		Persona:     persona,
		Input:       input,
		MaxTokens:   role.MaxTokens,
		Temperature: role.Temperature,
		Tier:        role.Tier,
	})
	out.Elapsed = time.Since(start)

	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = &llm.ServiceError{Message: "empty response"}
	}
	if err != nil {
		out.Text = FailureMarker(role.Stage)
		out.Err = err
		metrics.RecordStage(string(role.Stage), false, out.Elapsed)
		return out, nil
	}

	out.Text = text
	out.OK = true
	metrics.RecordStage(string(role.Stage), true, out.Elapsed)
	return out, nil
}

// renderInput fills the template and cuts the result so that the injected
// values use at most budget characters.
func renderInput(templateKey string, data map[string]string, budget int) (string, error) {
	full, err := prompts.Render(prompts.AgentsFile, templateKey, data)
	if err != nil {
		return "", err
	}
	if budget <= 0 {
		return full, nil
	}

	empty := make(map[string]string, len(data))
	for k := range data {
		empty[k] = ""
	}
	skeleton, err := prompts.Render(prompts.AgentsFile, templateKey, empty)
	if err != nil {
		return "", err
	}

	return ingestion.TruncateWithMarker(full, ingestion.Length(skeleton)+budget, truncatedMarker), nil
}
