// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Supported generation providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Supported search providers.
const (
	SearchGoogle  = "google"
	SearchSerpAPI = "serpapi"
	SearchTavily  = "tavily"
	SearchStatic  = "static"
)

// Environment variables holding credentials.
const (
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvGoogleSearchAPIKey = "GOOGLE_SEARCH_API_KEY"
	EnvGoogleSearchCX     = "GOOGLE_SEARCH_CX"
	EnvSerpAPIKey         = "SERPAPI_API_KEY"
	EnvTavilyAPIKey       = "TAVILY_API_KEY"
)

// TokenBudgets caps the output of each generation call.
type TokenBudgets struct {
	Terms      int `json:"terms,omitempty" yaml:"terms,omitempty" validate:"gte=0"`
	Summarize  int `json:"summarize,omitempty" yaml:"summarize,omitempty" validate:"gte=0"`
	Analyze    int `json:"analyze,omitempty" yaml:"analyze,omitempty" validate:"gte=0"`
	Organize   int `json:"organize,omitempty" yaml:"organize,omitempty" validate:"gte=0"`
	Synthesize int `json:"synthesize,omitempty" yaml:"synthesize,omitempty" validate:"gte=0"`
}

// Credentials are normally read from the environment, but may also come from
// a config file kept outside version control.
type Credentials struct {
	GeminiAPIKey       string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	OpenAIAPIKey       string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty"`
	GoogleSearchAPIKey string `json:"google_search_api_key,omitempty" yaml:"google_search_api_key,omitempty"`
	GoogleSearchCX     string `json:"google_search_cx,omitempty" yaml:"google_search_cx,omitempty"`
	SerpAPIKey         string `json:"serpapi_api_key,omitempty" yaml:"serpapi_api_key,omitempty"`
	TavilyAPIKey       string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
}

// Config represents the run configuration that can be loaded from a JSON or
// YAML file. Zero values are filled from Default by MergeWithDefaults.
type Config struct {
	// Collection
	Terms          int    `json:"terms,omitempty" yaml:"terms,omitempty" validate:"gte=0,lte=20"`
	PagesPerTerm   int    `json:"pages_per_term,omitempty" yaml:"pages_per_term,omitempty" validate:"gte=0,lte=10"`
	SearchProvider string `json:"search_provider,omitempty" yaml:"search_provider,omitempty" validate:"omitempty,oneof=google serpapi tavily static"`
	SearchSeedFile string `json:"search_seed_file,omitempty" yaml:"search_seed_file,omitempty"`

	// Extraction
	RequestTimeout   Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	MaxAttempts      int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"gte=0,lte=10"`
	RetryDelay       Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	MaxPageContent   int      `json:"max_page_content,omitempty" yaml:"max_page_content,omitempty" validate:"gte=0"`
	MinContentLength int      `json:"min_content_length,omitempty" yaml:"min_content_length,omitempty" validate:"gte=0"`
	UserAgent        string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	UseBrowser       bool     `json:"use_browser,omitempty" yaml:"use_browser,omitempty"` // Re-fetch thin pages with a headless browser
	DetectLanguage   bool     `json:"detect_language,omitempty" yaml:"detect_language,omitempty"`

	// Generation
	LLMProvider          string       `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty" validate:"omitempty,oneof=gemini openai"`
	Model                string       `json:"model,omitempty" yaml:"model,omitempty"`
	LLMBaseURL           string       `json:"llm_base_url,omitempty" yaml:"llm_base_url,omitempty" validate:"omitempty,url"`
	GenerationTimeout    Duration     `json:"generation_timeout,omitempty" yaml:"generation_timeout,omitempty"`
	SearchTimeout        Duration     `json:"search_timeout,omitempty" yaml:"search_timeout,omitempty"`
	PageBlobBudget       int          `json:"page_blob_budget,omitempty" yaml:"page_blob_budget,omitempty" validate:"gte=0"`
	StageInputBudget     int          `json:"stage_input_budget,omitempty" yaml:"stage_input_budget,omitempty" validate:"gte=0"`
	SynthesisInputBudget int          `json:"synthesis_input_budget,omitempty" yaml:"synthesis_input_budget,omitempty" validate:"gte=0"`
	TokenBudgets         TokenBudgets `json:"token_budgets,omitempty" yaml:"token_budgets,omitempty"`

	// Output
	OutputDir   string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
	Verbose     bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	Credentials Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Terms:                5,
		PagesPerTerm:         5,
		SearchProvider:       SearchGoogle,
		RequestTimeout:       Seconds(15),
		MaxAttempts:          3,
		RetryDelay:           Seconds(2),
		MaxPageContent:       8000,
		MinContentLength:     100,
		UserAgent:            "Mozilla/5.0 (compatible; TopicDigest/1.0)",
		LLMProvider:          ProviderGemini,
		GenerationTimeout:    Seconds(60),
		SearchTimeout:        Seconds(20),
		PageBlobBudget:       3000,
		StageInputBudget:     8000,
		SynthesisInputBudget: 12000,
		TokenBudgets: TokenBudgets{
			Terms:      400,
			Summarize:  600,
			Analyze:    800,
			Organize:   700,
			Synthesize: 2000,
		},
		OutputDir: ".",
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Relative paths inside the file are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	base := filepath.Dir(path)
	cfg.OutputDir = resolve(base, cfg.OutputDir)
	cfg.SearchSeedFile = resolve(base, cfg.SearchSeedFile)
	cfg.MetricsFile = resolve(base, cfg.MetricsFile)

	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ApplyEnv fills credentials that are still empty from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Credentials.GeminiAPIKey, EnvGeminiAPIKey)
	set(&c.Credentials.OpenAIAPIKey, EnvOpenAIAPIKey)
	set(&c.Credentials.GoogleSearchAPIKey, EnvGoogleSearchAPIKey)
	set(&c.Credentials.GoogleSearchCX, EnvGoogleSearchCX)
	set(&c.Credentials.SerpAPIKey, EnvSerpAPIKey)
	set(&c.Credentials.TavilyAPIKey, EnvTavilyAPIKey)
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	num := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}
	dur := func(dst *Duration, def Duration) {
		if dst.Duration == 0 {
			*dst = def
		}
	}

	num(&result.Terms, defaults.Terms)
	num(&result.PagesPerTerm, defaults.PagesPerTerm)
	str(&result.SearchProvider, defaults.SearchProvider)
	str(&result.SearchSeedFile, defaults.SearchSeedFile)

	dur(&result.RequestTimeout, defaults.RequestTimeout)
	num(&result.MaxAttempts, defaults.MaxAttempts)
	dur(&result.RetryDelay, defaults.RetryDelay)
	num(&result.MaxPageContent, defaults.MaxPageContent)
	num(&result.MinContentLength, defaults.MinContentLength)
	str(&result.UserAgent, defaults.UserAgent)

	str(&result.LLMProvider, defaults.LLMProvider)
	str(&result.Model, defaults.Model)
	str(&result.LLMBaseURL, defaults.LLMBaseURL)
	dur(&result.GenerationTimeout, defaults.GenerationTimeout)
	dur(&result.SearchTimeout, defaults.SearchTimeout)
	num(&result.PageBlobBudget, defaults.PageBlobBudget)
	num(&result.StageInputBudget, defaults.StageInputBudget)
	num(&result.SynthesisInputBudget, defaults.SynthesisInputBudget)
	num(&result.TokenBudgets.Terms, defaults.TokenBudgets.Terms)
	num(&result.TokenBudgets.Summarize, defaults.TokenBudgets.Summarize)
	num(&result.TokenBudgets.Analyze, defaults.TokenBudgets.Analyze)
	num(&result.TokenBudgets.Organize, defaults.TokenBudgets.Organize)
	num(&result.TokenBudgets.Synthesize, defaults.TokenBudgets.Synthesize)

	str(&result.OutputDir, defaults.OutputDir)
	str(&result.MetricsFile, defaults.MetricsFile)

	str(&result.Credentials.GeminiAPIKey, defaults.Credentials.GeminiAPIKey)
	str(&result.Credentials.OpenAIAPIKey, defaults.Credentials.OpenAIAPIKey)
	str(&result.Credentials.GoogleSearchAPIKey, defaults.Credentials.GoogleSearchAPIKey)
	str(&result.Credentials.GoogleSearchCX, defaults.Credentials.GoogleSearchCX)
	str(&result.Credentials.SerpAPIKey, defaults.Credentials.SerpAPIKey)
	str(&result.Credentials.TavilyAPIKey, defaults.Credentials.TavilyAPIKey)

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values. Credentials are
// checked separately by RequireCredentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			msg := fmt.Sprintf("failed '%s' check", fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("failed '%s=%s' check", fe.Tag(), fe.Param())
			}
			return &ConfigError{Field: fe.Field(), Message: msg}
		}
		return &ConfigError{Message: "invalid configuration", Cause: err}
	}

	if c.SearchProvider == SearchStatic && c.SearchSeedFile == "" {
		return &ConfigError{Field: "search_seed_file", Message: "required for the static search provider"}
	}
	if c.MaxAttempts < 0 || c.RetryDelay.Duration < 0 || c.RequestTimeout.Duration < 0 {
		return &ConfigError{Message: "timeouts and retry settings must be non-negative"}
	}

	return nil
}

// LLMAPIKey returns the credential for the configured generation provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == ProviderOpenAI {
		return c.Credentials.OpenAIAPIKey
	}
	return c.Credentials.GeminiAPIKey
}

// RequireCredentials reports the first missing credential for the configured
// providers. When needSearch is false only the generation key is required.
func (c *Config) RequireCredentials(needSearch bool) error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.Credentials.OpenAIAPIKey == "" && c.LLMBaseURL == "" {
			return missing(EnvOpenAIAPIKey)
		}
	default:
		if c.Credentials.GeminiAPIKey == "" {
			return missing(EnvGeminiAPIKey)
		}
	}

	if !needSearch {
		return nil
	}

	switch c.SearchProvider {
	case SearchSerpAPI:
		if c.Credentials.SerpAPIKey == "" {
			return missing(EnvSerpAPIKey)
		}
	case SearchTavily:
		if c.Credentials.TavilyAPIKey == "" {
			return missing(EnvTavilyAPIKey)
		}
	case SearchStatic:
	default:
		if c.Credentials.GoogleSearchAPIKey == "" {
			return missing(EnvGoogleSearchAPIKey)
		}
		if c.Credentials.GoogleSearchCX == "" {
			return missing(EnvGoogleSearchCX)
		}
	}
	return nil
}

func missing(env string) error {
	return &ConfigError{Field: env, Message: "required credential is not set"}
}
