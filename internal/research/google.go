package research

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxGoogleResults is the per-request cap of the Custom Search API.
const maxGoogleResults = 10

// GoogleProvider searches with the Google Programmable Search (Custom Search) API.
type GoogleProvider struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleProvider creates a provider for the given API key and engine ID.
// Extra client options are passed to the service (tests use option.WithEndpoint).
func NewGoogleProvider(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleProvider, error) {
	if cx == "" {
		return nil, fmt.Errorf("custom search engine id (cx) is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleProvider{svc: svc, cx: cx}, nil
}

// Name implements Provider.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Search implements Provider.
func (p *GoogleProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxGoogleResults {
		limit = maxGoogleResults
	}

	resp, err := p.svc.Cse.List().Cx(p.cx).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
	}
	return results, nil
}
