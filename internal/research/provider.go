// Package research provides the web search providers used to discover pages
// for each search term.
package research

import (
	"context"
	"fmt"

	"github.com/jonathan/topic-digest/internal/config"
)

// Result is one organic search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Provider runs one search query and returns results in rank order.
type Provider interface {
	// Name returns the provider identifier (e.g., "google", "tavily")
	Name() string
	// Search returns at most limit results for query
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// New builds the provider selected by cfg.SearchProvider. Credentials must
// already have been checked with cfg.RequireCredentials.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.SearchProvider {
	case config.SearchSerpAPI:
		return NewSerpAPIProvider(cfg.Credentials.SerpAPIKey), nil
	case config.SearchTavily:
		return NewTavilyProvider(cfg.Credentials.TavilyAPIKey), nil
	case config.SearchStatic:
		return LoadStaticProvider(cfg.SearchSeedFile)
	case config.SearchGoogle, "":
		return NewGoogleProvider(ctx, cfg.Credentials.GoogleSearchAPIKey, cfg.Credentials.GoogleSearchCX)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
}

// URLs returns the result links in order.
func URLs(results []Result) []string {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	return urls
}
