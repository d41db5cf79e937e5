package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/topic-digest/internal/config"
)

// configFlags are the flags shared by the commands that build a config.
type configFlags struct {
	configPath     string
	terms          int
	pages          int
	outputDir      string
	llmProvider    string
	model          string
	searchProvider string
	seedFile       string
	useBrowser     bool
	detectLanguage bool
	resume         bool
	metricsFile    string
	verbose        bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by other flags)")
	flags.IntVar(&f.terms, "terms", 0, "Number of search terms to generate")
	flags.IntVar(&f.pages, "pages", 0, "Pages to collect per term")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for the dataset, partial and report files")
	flags.StringVar(&f.llmProvider, "llm-provider", "", "Generation provider: gemini or openai")
	flags.StringVar(&f.model, "model", "", "Model name for every generation call")
	flags.StringVar(&f.searchProvider, "search-provider", "", "Search provider: google, serpapi, tavily or static")
	flags.StringVar(&f.seedFile, "seed-file", "", "YAML seed file for the static search provider")
	flags.BoolVar(&f.useBrowser, "browser", false, "Re-fetch thin pages with a headless browser (requires Chrome)")
	flags.BoolVar(&f.detectLanguage, "detect-language", false, "Tag extracted pages with their language")
	flags.BoolVar(&f.resume, "resume", false, "Reuse the dataset and completed terms of a previous run, finishing an interrupted extraction")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
}

// resolve builds the effective config: defaults, then the config file, then
// the environment, then explicitly set flags.
func (f *configFlags) resolve(cmd *cobra.Command, lookup func(string) (string, bool)) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg.ApplyEnv(lookup)

	changed := cmd.Flags().Changed
	if changed("terms") {
		cfg.Terms = f.terms
	}
	if changed("pages") {
		cfg.PagesPerTerm = f.pages
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("llm-provider") {
		cfg.LLMProvider = strings.ToLower(f.llmProvider)
	}
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("search-provider") {
		cfg.SearchProvider = strings.ToLower(f.searchProvider)
	}
	if changed("seed-file") {
		cfg.SearchSeedFile = f.seedFile
	}
	if changed("browser") {
		cfg.UseBrowser = f.useBrowser
	}
	if changed("detect-language") {
		cfg.DetectLanguage = f.detectLanguage
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	cfg = cfg.MergeWithDefaults(config.Default())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func topicArg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func envLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
