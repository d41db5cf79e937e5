package research

import (
	"context"
	"fmt"
	"strconv"

	g "github.com/serpapi/google-search-results-golang"
)

// serpSearchFunc performs the raw SerpApi request.
type serpSearchFunc func(parameter map[string]string, apiKey string) (map[string]interface{}, error)

func defaultSerpSearch(parameter map[string]string, apiKey string) (map[string]interface{}, error) {
	search := g.NewGoogleSearch(parameter, apiKey)
	return search.GetJSON()
}

// SerpAPIProvider searches Google through SerpApi.
type SerpAPIProvider struct {
	apiKey string
	search serpSearchFunc
}

// NewSerpAPIProvider creates a SerpApi provider.
func NewSerpAPIProvider(apiKey string) *SerpAPIProvider {
	return &SerpAPIProvider{apiKey: apiKey, search: defaultSerpSearch}
}

// Name implements Provider.
func (p *SerpAPIProvider) Name() string {
	return "serpapi"
}

// Search implements Provider. The SerpApi client takes no context, so the
// request runs in its own goroutine and is abandoned when ctx expires.
func (p *SerpAPIProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("SerpApi API key is not set")
	}
	if limit <= 0 {
		return nil, nil
	}

	parameter := map[string]string{
		"engine": "google",
		"q":      query,
		"num":    strconv.Itoa(limit),
	}

	type response struct {
		data map[string]interface{}
		err  error
	}
	done := make(chan response, 1)
	go func() {
		data, err := p.search(parameter, p.apiKey)
		done <- response{data, err}
	}()

	var data map[string]interface{}
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("serpapi search failed: %w", r.err)
		}
		data = r.data
	case <-ctx.Done():
		return nil, fmt.Errorf("serpapi search failed: %w", ctx.Err())
	}

	return parseOrganicResults(data, limit), nil
}

func parseOrganicResults(data map[string]interface{}, limit int) []Result {
	organic, ok := data["organic_results"].([]interface{})
	if !ok {
		return nil
	}

	results := make([]Result, 0, len(organic))
	for _, item := range organic {
		res, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		link, _ := res["link"].(string)
		if link == "" {
			continue
		}
		title, _ := res["title"].(string)
		snippet, _ := res["snippet"].(string)
		results = append(results, Result{URL: link, Title: title, Snippet: snippet})
		if len(results) == limit {
			break
		}
	}
	return results
}
