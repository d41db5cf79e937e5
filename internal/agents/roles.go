// Package agents runs the per-term summarize, analyze and organize stages
// and the final synthesis over a dataset. Roles are plain configuration
// records; every stage goes through the same stateless Invoke call.
package agents

import (
	"strings"

	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/prompts"
)

// Stage names one generation step.
type Stage string

const (
	StageSummarize  Stage = "summarize"
	StageAnalyze    Stage = "analyze"
	StageOrganize   Stage = "organize"
	StageSynthesize Stage = "synthesize"
)

// TermStages are the per-term stages in execution order.
var TermStages = []Stage{StageSummarize, StageAnalyze, StageOrganize}

// FailureMarker is the text substituted for a stage whose generation call
// failed. Later stages consume it as ordinary input.
func FailureMarker(stage Stage) string {
	return "[GENERATION FAILED: " + strings.ToUpper(string(stage)) + "]"
}

// Role configures one stage: which persona and input template it uses and
// how much it may generate.
type Role struct {
	Name        string
	Stage       Stage
	PersonaKey  string
	TemplateKey string
	MaxTokens   int
	Temperature float32
	Tier        llm.ModelTier
}

// Persona returns the role's system instruction.
func (r Role) Persona() (string, error) {
	return prompts.Get(prompts.AgentsFile, r.PersonaKey)
}

// Budgets are the output token caps of each stage.
type Budgets struct {
	Summarize  int
	Analyze    int
	Organize   int
	Synthesize int
}

// Roles holds the four configured roles.
type Roles struct {
	Summarizer  Role
	Analyst     Role
	Organizer   Role
	Synthesizer Role
}

// DefaultRoles returns the standard role set with the given token budgets.
func DefaultRoles(b Budgets) Roles {
	return Roles{
		Summarizer: Role{
			Name:        "summarizer",
			Stage:       StageSummarize,
			PersonaKey:  "summarizer-persona",
			TemplateKey: "summarize-input",
			MaxTokens:   b.Summarize,
			Temperature: 0.3,
			Tier:        llm.TierStandard,
		},
		Analyst: Role{
			Name:        "analyst",
			Stage:       StageAnalyze,
			PersonaKey:  "analyst-persona",
			TemplateKey: "analyze-input",
			MaxTokens:   b.Analyze,
			Temperature: 0.4,
			Tier:        llm.TierStandard,
		},
		Organizer: Role{
			Name:        "organizer",
			Stage:       StageOrganize,
			PersonaKey:  "organizer-persona",
			TemplateKey: "organize-input",
			MaxTokens:   b.Organize,
			Temperature: 0.3,
			Tier:        llm.TierStandard,
		},
		Synthesizer: Role{
			Name:        "synthesizer",
			Stage:       StageSynthesize,
			PersonaKey:  "synthesizer-persona",
			TemplateKey: "synthesize-input",
			MaxTokens:   b.Synthesize,
			Temperature: 0.5,
			Tier:        llm.TierAdvanced,
		},
	}
}

// ForStage returns the per-term role for stage.
func (r Roles) ForStage(stage Stage) (Role, bool) {
	switch stage {
	case StageSummarize:
		return r.Summarizer, true
	case StageAnalyze:
		return r.Analyst, true
	case StageOrganize:
		return r.Organizer, true
	case StageSynthesize:
		return r.Synthesizer, true
	}
	return Role{}, false
}
