// Package terms turns a topic into an ordered list of distinct search terms.
package terms

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/prompts"
)

// DefaultCount is the number of terms requested when none is configured.
const DefaultCount = 5

// minLineLength is the shortest unnumbered line accepted as a term.
const minLineLength = 6

// FallbackQualifiers are combined with the topic when the generation service
// gives nothing usable.
var FallbackQualifiers = []string{
	"tutorial",
	"documentation",
	"beginner guide",
	"core concepts",
	"practical examples",
}

var numberedRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*(.+)$`)

// Result is the generated list and how it was obtained.
type Result struct {
	Terms    []string
	Fallback bool  // true when the deterministic rule produced the terms
	Err      error // the generation error that triggered the fallback, if any
}

// Generator produces search terms with the generation service.
type Generator struct {
	client    llm.Client
	maxTokens int
	log       zerolog.Logger
}

// NewGenerator creates a Generator. maxTokens caps the model's answer.
func NewGenerator(client llm.Client, maxTokens int, logger zerolog.Logger) *Generator {
	return &Generator{
		client:    client,
		maxTokens: maxTokens,
		log:       logger.With().Str("component", "terms").Logger(),
	}
}

// Generate returns up to count distinct terms for topic. It never fails: when
// the service errors or returns nothing usable, Fallback terms are returned,
// so the result always holds at least one term.
func (g *Generator) Generate(ctx context.Context, topic string, count int) Result {
	topic = strings.TrimSpace(topic)
	if count <= 0 {
		count = DefaultCount
	}

	if g.client == nil {
		return Result{Terms: Fallback(topic, count), Fallback: true}
	}

	input, err := prompts.Render(prompts.TermsFile, "generate-terms", map[string]string{
		"Topic": topic,
		"Count": strconv.Itoa(count),
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("term prompt unavailable, using fallback terms")
		return Result{Terms: Fallback(topic, count), Fallback: true, Err: err}
	}

	text, err := g.client.Generate(ctx, llm.Request{
		Persona:     prompts.MustGet(prompts.TermsFile, "persona"),
		Input:       input,
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
		Tier:        llm.TierLite,
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("term generation failed, using fallback terms")
		return Result{Terms: Fallback(topic, count), Fallback: true, Err: err}
	}

	parsed := Parse(text, count)
	if len(parsed) == 0 {
		g.log.Warn().Msg("no usable terms in response, using fallback terms")
		return Result{Terms: Fallback(topic, count), Fallback: true}
	}

	g.log.Info().Strs("terms", parsed).Msg("terms generated")
	return Result{Terms: parsed}
}

// Parse extracts terms from a model answer. Numbered or bulleted lines are
// preferred; when there are none, every line of at least minLineLength
// characters is used. Quotes are stripped and duplicates dropped
// case-insensitively. At most count terms are returned.
func Parse(text string, count int) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var candidates []string
	for _, line := range lines {
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			candidates = append(candidates, m[1])
		}
	}
	if len(candidates) == 0 {
		for _, line := range lines {
			if len(strings.TrimSpace(line)) >= minLineLength {
				candidates = append(candidates, line)
			}
		}
	}

	seen := make(map[string]bool)
	terms := make([]string, 0, count)
	for _, c := range candidates {
		term := cleanTerm(c)
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
		if len(terms) == count {
			break
		}
	}
	return terms
}

func cleanTerm(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”‘’*_")
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

// Fallback combines the topic with FallbackQualifiers. It returns at least one
// term even for count <= 0 or an empty topic.
func Fallback(topic string, count int) []string {
	topic = strings.TrimSpace(topic)
	if count <= 0 {
		count = 1
	}
	if topic == "" {
		topic = "overview"
	}

	terms := make([]string, 0, count)
	for _, q := range FallbackQualifiers {
		if len(terms) == count {
			break
		}
		terms = append(terms, topic+" "+q)
	}
	return terms
}
