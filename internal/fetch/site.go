package fetch

import (
	"net/url"
	"strings"
)

// Site is a content host whose page layout is known.
type Site string

const (
	SiteWikipedia     Site = "wikipedia"
	SiteStackExchange Site = "stackexchange"
	SiteGitHub        Site = "github"
	SiteMedium        Site = "medium"
	SiteMDN           Site = "mdn"
	SiteUnknown       Site = "unknown"
)

// DetectSite identifies a known content host from a URL.
func DetectSite(urlStr string) Site {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SiteUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	switch {
	case host == "wikipedia.org" || strings.HasSuffix(host, ".wikipedia.org"):
		return SiteWikipedia
	case host == "stackoverflow.com" || host == "superuser.com" || host == "serverfault.com" ||
		strings.HasSuffix(host, ".stackexchange.com"):
		return SiteStackExchange
	case host == "github.com":
		return SiteGitHub
	case host == "medium.com" || strings.HasSuffix(host, ".medium.com"):
		return SiteMedium
	case host == "developer.mozilla.org":
		return SiteMDN
	}
	return SiteUnknown
}

// SiteContentSelectors returns content selectors for site, most specific first.
func SiteContentSelectors(site Site) []string {
	switch site {
	case SiteWikipedia:
		return []string{"#mw-content-text .mw-parser-output", "#mw-content-text", "#content"}
	case SiteStackExchange:
		return []string{"#mainbar", "#question", ".question"}
	case SiteGitHub:
		return []string{"article.markdown-body", ".markdown-body", "#readme"}
	case SiteMedium:
		return []string{"article section", "article"}
	case SiteMDN:
		return []string{"main#content article", ".main-page-content", "article"}
	default:
		return DefaultTextSelectors()
	}
}

// SiteNoiseSelectors returns elements removed before reading text from site.
func SiteNoiseSelectors(site Site) []string {
	switch site {
	case SiteWikipedia:
		return []string{".reference", ".reflist", ".navbox", ".infobox", ".mw-editsection", "#toc", ".hatnote", ".metadata"}
	case SiteStackExchange:
		return []string{".js-vote-count", ".post-signature", ".comments", ".js-post-menu", "#sidebar", ".bottom-notice"}
	case SiteGitHub:
		return []string{".octicon", ".anchor", ".file-navigation"}
	case SiteMedium:
		return []string{".pw-multi-vote-count", ".speechify-ignore", "[data-testid='headerClapButton']"}
	case SiteMDN:
		return []string{".bc-table", ".sidebar", ".metadata", ".prev-next"}
	default:
		return nil
	}
}
