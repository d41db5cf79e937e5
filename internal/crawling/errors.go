// Package crawling turns search terms into a deduplicated, filtered set of
// candidate page URLs.
package crawling

import "fmt"

// CrawlError represents a general crawling failure
type CrawlError struct {
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// SearchError reports a failed search for one term. The term is kept with
// no URLs and collection continues.
type SearchError struct {
	Term     string
	Provider string
	Cause    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search error for %q (%s): %v", e.Term, e.Provider, e.Cause)
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}

// NormalizeError reports a URL that cannot be canonicalized.
type NormalizeError struct {
	URL     string
	Message string
	Cause   error
}

func (e *NormalizeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("normalize error for %q: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("normalize error for %q: %s", e.URL, e.Message)
}

func (e *NormalizeError) Unwrap() error {
	return e.Cause
}
