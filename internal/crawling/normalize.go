package crawling

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters dropped during normalization.
var trackingParams = []string{"fbclid", "gclid", "msclkid", "mc_cid", "mc_eid", "ref_src"}

// Normalize canonicalizes an absolute http(s) URL: lower-cased scheme and
// host, default port dropped, fragment and user info removed, trailing slash
// trimmed, tracking parameters dropped and remaining query parameters sorted.
// Two URLs that normalize to the same string are the same page for the run.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &NormalizeError{URL: raw, Message: "empty URL"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &NormalizeError{URL: raw, Message: "failed to parse URL", Cause: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &NormalizeError{URL: raw, Message: "unsupported scheme"}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &NormalizeError{URL: raw, Message: "missing host"}
	}
	host = strings.TrimSuffix(host, ".")
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host = host + ":" + port
	}

	path := strings.TrimRight(u.EscapedPath(), "/")

	var sb strings.Builder
	sb.WriteString(scheme)
	sb.WriteString("://")
	sb.WriteString(host)
	sb.WriteString(path)
	if query := normalizeQuery(u.Query()); query != "" {
		sb.WriteString("?")
		sb.WriteString(query)
	}
	return sb.String(), nil
}

func normalizeQuery(values url.Values) string {
	for key := range values {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			values.Del(key)
			continue
		}
		for _, p := range trackingParams {
			if lower == p {
				values.Del(key)
				break
			}
		}
	}
	// Encode sorts by key.
	return values.Encode()
}

// Host returns the lower-cased host of a URL without a "www." prefix.
func Host(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// URLSet is the run-scoped set of normalized URLs. A URL belongs to the
// first term that added it. It is not safe for concurrent use.
type URLSet struct {
	owner map[string]string
	order []string
}

// NewURLSet returns an empty set.
func NewURLSet() *URLSet {
	return &URLSet{owner: make(map[string]string)}
}

// Add records normalized for term and reports whether it was new.
func (s *URLSet) Add(normalized, term string) bool {
	if _, ok := s.owner[normalized]; ok {
		return false
	}
	s.owner[normalized] = term
	s.order = append(s.order, normalized)
	return true
}

// Contains reports whether normalized is already in the set.
func (s *URLSet) Contains(normalized string) bool {
	_, ok := s.owner[normalized]
	return ok
}

// Owner returns the term that discovered normalized.
func (s *URLSet) Owner(normalized string) (string, bool) {
	term, ok := s.owner[normalized]
	return term, ok
}

// Len returns the number of URLs in the set.
func (s *URLSet) Len() int {
	return len(s.order)
}

// URLs returns the URLs in insertion order.
func (s *URLSet) URLs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
