package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"terms": 3,
		"pages_per_term": 2,
		"search_provider": "tavily",
		"request_timeout": "5s",
		"retry_delay": 1,
		"output_dir": "out",
		"verbose": true
	}`

	dir := t.TempDir()
	tmpFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3, cfg.Terms)
	assert.Equal(t, 2, cfg.PagesPerTerm)
	assert.Equal(t, SearchTavily, cfg.SearchProvider)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout.Duration)
	assert.Equal(t, time.Second, cfg.RetryDelay.Duration)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
terms: 4
llm_provider: openai
model: gpt-4o-mini
generation_timeout: 30s
token_budgets:
  synthesize: 1500
search_provider: static
search_seed_file: seeds.yaml
`
	dir := t.TempDir()
	tmpFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Terms)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout.Duration)
	assert.Equal(t, 1500, cfg.TokenBudgets.Synthesize)
	assert.Equal(t, filepath.Join(dir, "seeds.yaml"), cfg.SearchSeedFile)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"retry_delay": "soon"}`), 0644))

	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "too many terms", mutate: func(c *Config) { c.Terms = 50 }, wantField: "terms"},
		{name: "unknown search provider", mutate: func(c *Config) { c.SearchProvider = "bing" }, wantField: "search_provider"},
		{name: "unknown llm provider", mutate: func(c *Config) { c.LLMProvider = "cohere" }, wantField: "llm_provider"},
		{name: "static provider without seeds", mutate: func(c *Config) { c.SearchProvider = SearchStatic }, wantField: "search_seed_file"},
		{name: "bad base url", mutate: func(c *Config) { c.LLMBaseURL = "not a url" }, wantField: "llm_base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Terms:     2,
		OutputDir: "reports",
		TokenBudgets: TokenBudgets{
			Summarize: 100,
		},
	}

	merged := partial.MergeWithDefaults(Default())

	assert.Equal(t, 2, merged.Terms)
	assert.Equal(t, "reports", merged.OutputDir)
	assert.Equal(t, 100, merged.TokenBudgets.Summarize)

	assert.Equal(t, 5, merged.PagesPerTerm)
	assert.Equal(t, 3, merged.MaxAttempts)
	assert.Equal(t, 15*time.Second, merged.RequestTimeout.Duration)
	assert.Equal(t, 2000, merged.TokenBudgets.Synthesize)
	assert.Equal(t, ProviderGemini, merged.LLMProvider)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGeminiAPIKey:       " gem-key ",
		EnvGoogleSearchAPIKey: "search-key",
		EnvGoogleSearchCX:     "cx",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Config{Credentials: Credentials{GoogleSearchCX: "from-file"}}
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "gem-key", cfg.Credentials.GeminiAPIKey)
	assert.Equal(t, "search-key", cfg.Credentials.GoogleSearchAPIKey)
	assert.Equal(t, "from-file", cfg.Credentials.GoogleSearchCX, "file value wins over env")
	assert.Empty(t, cfg.Credentials.OpenAIAPIKey)
}

func TestRequireCredentials(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		needSearch bool
		wantField  string
	}{
		{
			name:      "missing gemini key",
			cfg:       Config{LLMProvider: ProviderGemini},
			wantField: EnvGeminiAPIKey,
		},
		{
			name:      "missing openai key",
			cfg:       Config{LLMProvider: ProviderOpenAI},
			wantField: EnvOpenAIAPIKey,
		},
		{
			name: "openai compatible endpoint needs no key",
			cfg:  Config{LLMProvider: ProviderOpenAI, LLMBaseURL: "http://localhost:11434/v1"},
		},
		{
			name:       "missing google cx",
			cfg:        Config{Credentials: Credentials{GeminiAPIKey: "k", GoogleSearchAPIKey: "s"}},
			needSearch: true,
			wantField:  EnvGoogleSearchCX,
		},
		{
			name:       "missing tavily key",
			cfg:        Config{SearchProvider: SearchTavily, Credentials: Credentials{GeminiAPIKey: "k"}},
			needSearch: true,
			wantField:  EnvTavilyAPIKey,
		},
		{
			name:       "static search needs no key",
			cfg:        Config{SearchProvider: SearchStatic, Credentials: Credentials{GeminiAPIKey: "k"}},
			needSearch: true,
		},
		{
			name: "search key not needed for summarize",
			cfg:  Config{Credentials: Credentials{GeminiAPIKey: "k"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.RequireCredentials(tt.needSearch)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), "config error")
		})
	}
}
