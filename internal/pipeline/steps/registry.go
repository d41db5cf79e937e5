// Package steps provides step definitions, dependency validation and progress
// tracking for the topic digest pipeline.
package steps

import "fmt"

// Step categories.
const (
	CategoryDiscovery   = "discovery"
	CategoryExtraction  = "extraction"
	CategoryPersistence = "persistence"
	CategoryAnalysis    = "analysis"
)

// Step names.
const (
	GenerateTerms = "generate_terms"
	CollectURLs   = "collect_urls"
	ExtractPages  = "extract_pages"
	SaveDataset   = "save_dataset"
	LoadDataset   = "load_dataset"
	AnalyzeTerms  = "analyze_terms"
	Synthesize    = "synthesize"
	WriteReport   = "write_report"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Description  string
	Dependencies []string // all must be completed
	AnyOf        []string // at least one must be completed, when set
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	GenerateTerms: {
		Name:        GenerateTerms,
		Category:    CategoryDiscovery,
		Description: "Generating search terms",
	},
	CollectURLs: {
		Name:         CollectURLs,
		Category:     CategoryDiscovery,
		Description:  "Collecting URLs",
		Dependencies: []string{GenerateTerms},
	},
	ExtractPages: {
		Name:         ExtractPages,
		Category:     CategoryExtraction,
		Description:  "Extracting page text",
		Dependencies: []string{CollectURLs},
	},
	SaveDataset: {
		Name:         SaveDataset,
		Category:     CategoryPersistence,
		Description:  "Saving dataset",
		Dependencies: []string{ExtractPages},
	},
	LoadDataset: {
		Name:        LoadDataset,
		Category:    CategoryPersistence,
		Description: "Loading dataset",
	},
	AnalyzeTerms: {
		Name:        AnalyzeTerms,
		Category:    CategoryAnalysis,
		Description: "Running summarize, analyze and organize per term",
		AnyOf:       []string{SaveDataset, LoadDataset},
	},
	Synthesize: {
		Name:         Synthesize,
		Category:     CategoryAnalysis,
		Description:  "Synthesizing final report",
		Dependencies: []string{AnalyzeTerms},
	},
	WriteReport: {
		Name:         WriteReport,
		Category:     CategoryPersistence,
		Description:  "Writing final report",
		Dependencies: []string{Synthesize},
	},
}

// RunPlan is the step order of a full run.
func RunPlan() []string {
	return []string{GenerateTerms, CollectURLs, ExtractPages, SaveDataset, AnalyzeTerms, Synthesize, WriteReport}
}

// SummarizePlan is the step order when an existing dataset is analyzed.
func SummarizePlan() []string {
	return []string{LoadDataset, AnalyzeTerms, Synthesize, WriteReport}
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks if all required dependencies for a step are completed
func ValidateDependencies(completed map[string]bool, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(def.AnyOf) > 0 {
		found := false
		for _, dep := range def.AnyOf {
			if completed[dep] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, def.AnyOf...)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// ValidatePlan checks that every step of plan is known, appears once and has
// its dependencies met by the steps before it.
func ValidatePlan(plan []string) error {
	completed := make(map[string]bool, len(plan))
	for _, step := range plan {
		if completed[step] {
			return fmt.Errorf("step %s appears twice", step)
		}
		if err := ValidateDependencies(completed, step); err != nil {
			return err
		}
		completed[step] = true
	}
	return nil
}
