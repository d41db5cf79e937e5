package crawling

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/topic-digest/internal/research"
)

type fakeProvider struct {
	results map[string][]string
	fail    map[string]bool
	calls   []string
	limits  []int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, query string, limit int) ([]research.Result, error) {
	f.calls = append(f.calls, query)
	f.limits = append(f.limits, limit)
	if f.fail[query] {
		return nil, errors.New("quota exceeded")
	}
	var out []research.Result
	for _, u := range f.results[query] {
		out = append(out, research.Result{URL: u})
	}
	return out, nil
}

func newTestCollector(p research.Provider, perTerm int) *Collector {
	return NewCollector(p, CollectorOptions{PagesPerTerm: perTerm, Logger: zerolog.Nop()})
}

func TestCollect_SharedURLBelongsToFirstTerm(t *testing.T) {
	provider := &fakeProvider{results: map[string][]string{
		"ml basics":   {"https://a.example/intro", "https://shared.example/ml"},
		"ml tutorial": {"https://shared.example/ml/", "https://b.example/tutorial"},
	}}

	collection, err := newTestCollector(provider, 2).Collect(context.Background(), []string{"ml basics", "ml tutorial"}, NewURLSet())
	require.NoError(t, err)

	require.Len(t, collection.Terms, 2)
	assert.Equal(t, []string{"https://a.example/intro", "https://shared.example/ml"}, collection.Terms[0].URLs)
	assert.Equal(t, []string{"https://b.example/tutorial"}, collection.Terms[1].URLs)
	assert.Equal(t, 3, collection.TotalURLs())

	require.Len(t, collection.Rejected, 1)
	assert.Equal(t, ReasonDuplicate, collection.Rejected[0].Reason)
	assert.Equal(t, "ml tutorial", collection.Rejected[0].Term)
}

func TestCollect_CapsResultsPerTerm(t *testing.T) {
	provider := &fakeProvider{results: map[string][]string{
		"go": {"https://1.example", "https://2.example", "https://3.example", "https://4.example"},
	}}

	collection, err := newTestCollector(provider, 2).Collect(context.Background(), []string{"go"}, nil)
	require.NoError(t, err)
	assert.Len(t, collection.Terms[0].URLs, 2)
	assert.Equal(t, []int{2}, provider.limits)
}

func TestCollect_NoDuplicatesAcrossTerms(t *testing.T) {
	provider := &fakeProvider{results: map[string][]string{
		"t1": {"https://a.example", "https://b.example", "https://c.example"},
		"t2": {"https://B.example/", "https://c.example#x", "https://d.example"},
		"t3": {"https://a.example/?utm_source=feed", "https://d.example", "https://e.example"},
	}}

	seen := NewURLSet()
	collection, err := newTestCollector(provider, 3).Collect(context.Background(), []string{"t1", "t2", "t3"}, seen)
	require.NoError(t, err)

	all := map[string]bool{}
	for _, term := range collection.Terms {
		for _, u := range term.URLs {
			assert.False(t, all[u], "duplicate %s", u)
			all[u] = true
		}
	}
	assert.Len(t, all, 5)
	assert.Equal(t, 5, seen.Len())
}

func TestCollect_FiltersDisallowed(t *testing.T) {
	provider := &fakeProvider{results: map[string][]string{
		"go": {"https://www.linkedin.com/pulse/go", "https://example.com/go.pdf", "not a url", "https://example.com/go"},
	}}

	collection, err := newTestCollector(provider, 5).Collect(context.Background(), []string{"go"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/go"}, collection.Terms[0].URLs)
	reasons := []string{}
	for _, r := range collection.Rejected {
		reasons = append(reasons, r.Reason)
	}
	assert.ElementsMatch(t, []string{ReasonLoginWall, ReasonFileType, ReasonInvalid}, reasons)
}

func TestCollect_SearchErrorKeepsTerm(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]string{"ok": {"https://ok.example"}},
		fail:    map[string]bool{"broken": true},
	}

	collection, err := newTestCollector(provider, 2).Collect(context.Background(), []string{"broken", "ok"}, nil)
	require.NoError(t, err)

	require.Len(t, collection.Terms, 2)
	assert.Empty(t, collection.Terms[0].URLs)
	assert.Equal(t, []string{"https://ok.example"}, collection.Terms[1].URLs)
	require.Len(t, collection.SearchErrors, 1)
	assert.Equal(t, "broken", collection.SearchErrors[0].Term)
}

func TestCollect_StopsBetweenTermsWhenCancelled(t *testing.T) {
	provider := &fakeProvider{results: map[string][]string{"a": {"https://a.example"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collection, err := newTestCollector(provider, 2).Collect(ctx, []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, collection.Terms)
	assert.Empty(t, provider.calls)
}
