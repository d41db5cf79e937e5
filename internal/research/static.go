package research

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticProvider answers searches from a seed file instead of a live search
// engine. It is meant for offline runs and curated source lists.
//
// Seed file format:
//
//	default:
//	  - https://go.dev/doc/
//	terms:
//	  go tutorial:
//	    - https://go.dev/tour/
type StaticProvider struct {
	Default []string            `yaml:"default"`
	Terms   map[string][]string `yaml:"terms"`
}

// LoadStaticProvider reads a YAML seed file.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var p StaticProvider
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if len(p.Default) == 0 && len(p.Terms) == 0 {
		return nil, fmt.Errorf("seed file %s has no URLs", path)
	}
	return &p, nil
}

// Name implements Provider.
func (p *StaticProvider) Name() string {
	return "static"
}

// Search implements Provider. Terms are matched case-insensitively; unknown
// terms get the default list.
func (p *StaticProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	urls := p.Default
	for term, list := range p.Terms {
		if strings.EqualFold(strings.TrimSpace(term), strings.TrimSpace(query)) {
			urls = list
			break
		}
	}

	results := make([]Result, 0, limit)
	for _, u := range urls {
		if len(results) == limit {
			break
		}
		results = append(results, Result{URL: u})
	}
	return results, nil
}
