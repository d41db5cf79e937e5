package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/topic-digest/internal/agents"
	"github.com/jonathan/topic-digest/internal/config"
	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/fetch"
	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/persist"
	"github.com/jonathan/topic-digest/internal/pipeline/steps"
	"github.com/jonathan/topic-digest/internal/prompts"
	"github.com/jonathan/topic-digest/internal/research"
)

const testTopic = "Distributed Systems"

// stubClient answers the term prompt with a fixed list, the synthesizer with
// every report section and every other stage with a short line.
type stubClient struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (c *stubClient) Generate(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.fail {
		return "", &llm.ServiceError{Provider: "stub", Message: "unavailable"}
	}
	if req.Persona == prompts.MustGet(prompts.TermsFile, "persona") {
		return "1. consensus algorithms\n2. replication strategies", nil
	}
	synth, _ := agents.DefaultRoles(agents.Budgets{}).Synthesizer.Persona()
	if req.Persona == synth {
		var sb strings.Builder
		for _, s := range agents.Sections {
			sb.WriteString(s + "\nFindings for " + s + "\n\n")
		}
		return sb.String(), nil
	}
	return "stage output", nil
}

func (c *stubClient) Close() error { return nil }

func (c *stubClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingProvider wraps a provider and counts searches.
type countingProvider struct {
	research.Provider
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Search(ctx context.Context, query string, limit int) ([]research.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.Provider.Search(ctx, query, limit)
}

// countingFetcher counts fetches.
type countingFetcher struct {
	fetch.Fetcher
	mu    sync.Mutex
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.Fetcher.Fetch(ctx, url)
}

// cancellingFetcher cancels the run once it has fetched limit pages.
type cancellingFetcher struct {
	fetch.Fetcher
	cancel context.CancelFunc
	limit  int
	mu     sync.Mutex
	calls  int
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	res, err := f.Fetcher.Fetch(ctx, url)
	f.mu.Lock()
	f.calls++
	if f.calls >= f.limit {
		f.cancel()
	}
	f.mu.Unlock()
	return res, err
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		para := strings.Repeat("Consensus protocols keep replicas in agreement despite failures. ", 8)
		fmt.Fprintf(w, `<html><head><title>Page %s</title></head><body><article>
<h1>Page %s</h1><p>%s</p><p>%s</p><p>%s</p></article></body></html>`, r.URL.Path, r.URL.Path, para, para, para)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSetup(t *testing.T) (RunOptions, *stubClient, *countingProvider, *countingFetcher) {
	t.Helper()
	srv := articleServer(t)

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Terms = 2
	cfg.PagesPerTerm = 2
	cfg.RetryDelay = config.Duration{Duration: time.Millisecond}

	static := &research.StaticProvider{Terms: map[string][]string{
		"consensus algorithms":   {srv.URL + "/raft", srv.URL + "/paxos"},
		"replication strategies": {srv.URL + "/paxos", srv.URL + "/chain"},
	}}
	provider := &countingProvider{Provider: static}
	fetcher := &countingFetcher{Fetcher: fetch.NewHTTPFetcher(&fetch.Options{Timeout: 5 * time.Second})}
	client := &stubClient{}

	opts := RunOptions{
		Topic:   testTopic,
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Client:  client,
		Search:  provider,
		Fetcher: fetcher,
		Now:     func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) },
	}
	return opts, client, provider, fetcher
}

func TestRunPipeline_MissingCredential(t *testing.T) {
	opts, client, provider, fetcher := testSetup(t)
	opts.Client = nil
	opts.Search = nil
	opts.Fetcher = nil
	opts.Config.OutputDir = filepath.Join(t.TempDir(), "out")

	res, err := RunPipeline(context.Background(), opts)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsConfigError(err))

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.EnvGeminiAPIKey, cfgErr.Field)

	_, statErr := os.Stat(opts.Config.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "output directory must not be created")
	assert.Zero(t, client.count())
	assert.Zero(t, provider.calls)
	assert.Zero(t, fetcher.calls)
}

func TestRunPipeline_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *RunOptions)
		field  string
	}{
		{name: "empty topic", mutate: func(o *RunOptions) { o.Topic = "   " }, field: "topic"},
		{name: "too many terms", mutate: func(o *RunOptions) { o.Config.Terms = 100 }, field: "terms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, client, _, _ := testSetup(t)
			tt.mutate(&opts)

			_, err := RunPipeline(context.Background(), opts)
			var cfgErr *config.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Zero(t, client.count())
		})
	}
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	opts, _, provider, fetcher := testSetup(t)
	opts.Config.MetricsFile = filepath.Join(opts.Config.OutputDir, "run.prom")

	var events []ProgressEvent
	opts.OnProgress = func(e ProgressEvent) { events = append(events, e) }

	res, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []string{"consensus algorithms", "replication strategies"}, res.Terms.Terms)
	assert.False(t, res.Terms.Fallback)
	assert.Equal(t, 2, provider.calls)

	// The shared URL stays with the first term.
	require.Len(t, res.Collection.Terms, 2)
	assert.Len(t, res.Collection.Terms[0].URLs, 2)
	assert.Len(t, res.Collection.Terms[1].URLs, 1)
	assert.Equal(t, 3, fetcher.calls)

	stats := res.Stats()
	assert.Equal(t, 3, stats.Success)
	assert.Zero(t, stats.Failed)

	loaded, err := persist.LoadDataset(res.Paths.Dataset)
	require.NoError(t, err)
	assert.Equal(t, testTopic, loaded.Metadata.Topic)
	assert.Equal(t, res.RunID, loaded.Metadata.RunID)
	assert.Equal(t, 3, loaded.Metadata.URLCount)
	assert.Equal(t, []string{"consensus algorithms", "replication strategies"}, loaded.TermNames())

	require.NotNil(t, res.Analysis)
	assert.True(t, res.Analysis.SynthesisOK)
	assert.Equal(t, 2, res.Analysis.Done())

	partial, err := os.ReadFile(res.Paths.Partial)
	require.NoError(t, err)
	assert.Contains(t, string(partial), "TERM: consensus algorithms")
	assert.Contains(t, string(partial), "TERM: replication strategies")

	report, err := os.ReadFile(res.Paths.Synthesis)
	require.NoError(t, err)
	for _, s := range agents.Sections {
		assert.Contains(t, string(report), s)
	}
	assert.Contains(t, string(report), testTopic)

	assert.Equal(t, filepath.Join(opts.Config.OutputDir, "dataset_distributed_systems.json"), res.Paths.Dataset)

	prom, err := os.ReadFile(opts.Config.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "topic_digest_pages_total")
	assert.Contains(t, string(prom), "topic_digest_stage_calls_total")
	assert.Empty(t, res.Errors)

	seen := make(map[string]bool)
	for _, e := range events {
		seen[e.Step] = true
		assert.Equal(t, res.RunID, e.RunID)
	}
	for _, step := range steps.RunPlan() {
		if step == steps.LoadDataset {
			continue
		}
		assert.True(t, seen[step], "missing progress for %s", step)
	}
}

func TestRunPipeline_GenerationUnavailable(t *testing.T) {
	opts, client, _, _ := testSetup(t)
	client.fail = true
	opts.Search = &countingProvider{Provider: &research.StaticProvider{
		Default: []string{articleServer(t).URL + "/fallback"},
	}}

	res, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, res.Terms.Fallback)
	assert.False(t, res.Analysis.SynthesisOK)

	report, err := os.ReadFile(res.Paths.Synthesis)
	require.NoError(t, err)
	assert.Equal(t, len(agents.Sections), strings.Count(string(report), agents.FailureMarker(agents.StageSynthesize)))
}

func TestRunPipeline_Resume(t *testing.T) {
	opts, _, _, _ := testSetup(t)
	first, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	provider := &countingProvider{Provider: &research.StaticProvider{Default: []string{"https://example.com"}}}
	client := &stubClient{}
	opts.Search = provider
	opts.Client = client
	opts.Resume = true

	second, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Zero(t, provider.calls, "collection is skipped when the dataset exists")
	// Both terms come from the partial file; only synthesis is called.
	assert.Equal(t, 1, client.count())
	for _, p := range second.Analysis.Terms {
		assert.True(t, p.Resumed)
	}
}

func TestRunPipeline_ResumeInterruptedExtraction(t *testing.T) {
	opts, _, _, fetcher := testSetup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts.Fetcher = &cancellingFetcher{Fetcher: fetcher, cancel: cancel, limit: 1}

	first, err := RunPipeline(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, first)

	saved, err := persist.LoadDataset(first.Paths.Dataset)
	require.NoError(t, err)
	assert.True(t, saved.Metadata.Incomplete)
	assert.Equal(t, []string{"consensus algorithms", "replication strategies"}, saved.Metadata.PendingTerms)
	assert.Len(t, saved.Records("consensus algorithms"), 1)
	assert.Empty(t, saved.Records("replication strategies"))

	resumed := &countingFetcher{Fetcher: fetcher.Fetcher}
	opts.Fetcher = resumed
	opts.Resume = true

	second, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.RunID, second.RunID)
	// Only the two pages that were never fetched.
	assert.Equal(t, 2, resumed.calls)

	loaded, err := persist.LoadDataset(second.Paths.Dataset)
	require.NoError(t, err)
	assert.False(t, loaded.Metadata.Incomplete)
	assert.Empty(t, loaded.Metadata.PendingTerms)
	assert.Equal(t, 3, loaded.Metadata.URLCount)
	assert.Len(t, loaded.Records("consensus algorithms"), 2)
	assert.Len(t, loaded.Records("replication strategies"), 1)
	assert.Equal(t, 2, second.Analysis.Done())
}

func TestRunPipeline_ResumeSkipsSearchCredentials(t *testing.T) {
	opts, _, _, _ := testSetup(t)
	_, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	var requests int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "stage output"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	opts.Client = nil
	opts.Search = nil
	opts.Fetcher = nil
	opts.Resume = true
	opts.Config.LLMProvider = config.ProviderOpenAI
	opts.Config.LLMBaseURL = server.URL
	opts.Config.Credentials = config.Credentials{}

	res, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	mu.Lock()
	assert.Positive(t, requests)
	mu.Unlock()

	// Without a dataset the search keys are still required.
	require.NoError(t, os.Remove(res.Paths.Dataset))
	_, err = RunPipeline(context.Background(), opts)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.EnvGoogleSearchAPIKey, cfgErr.Field)
}

func TestSummarize(t *testing.T) {
	opts, _, _, _ := testSetup(t)
	_, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, os.Remove(dataset.PathsFor(opts.Config.OutputDir, testTopic).Synthesis))

	client := &stubClient{}
	opts.Client = client
	opts.Search = nil
	opts.Fetcher = nil

	res, err := Summarize(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Analysis.Done())
	// Three stages per term plus synthesis.
	assert.Equal(t, 7, client.count())

	_, err = os.Stat(res.Paths.Synthesis)
	assert.NoError(t, err)
}

func TestSummarize_MissingDataset(t *testing.T) {
	opts, client, _, _ := testSetup(t)

	_, err := Summarize(context.Background(), opts)
	require.Error(t, err)
	var loadErr *persist.LoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Zero(t, client.count())
}

func TestRunPipeline_Cancelled(t *testing.T) {
	opts, _, provider, fetcher := testSetup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := RunPipeline(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, provider.calls)
	assert.Zero(t, fetcher.calls)
}
