package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/jonathan/topic-digest/internal/ingestion"
)

// baseNoise is removed from every document before text is read.
const baseNoise = "script, style, noscript, iframe, form, button, nav, header, footer, aside, svg, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup, .newsletter, .share, .comments"

// minReadableLength is the shortest readability result preferred over the
// selector-based extraction.
const minReadableLength = 200

// Page is the parsed form of a fetched document.
type Page struct {
	Title       string
	Description string
	Text        string
	Method      string // "readability", "selectors" or "site:<name>"
}

// ParseError reports a document that could not be parsed at all.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParsePage extracts title, description and main text. Pages of a known
// Site use its selectors when they find enough text. Otherwise readability is
// tried, and the selector-based extraction is the last resort.
func ParsePage(html, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Cause: err}
	}

	page := &Page{
		Title:       documentTitle(doc),
		Description: metaContent(doc, "description", "og:description"),
	}

	if site := DetectSite(pageURL); site != SiteUnknown {
		// mainText removes nodes, so the site pass reads its own copy.
		siteDoc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			if text := mainText(siteDoc, SiteContentSelectors(site), SiteNoiseSelectors(site)); ingestion.Length(text) >= minReadableLength {
				page.Text = text
				page.Method = "site:" + string(site)
				return page, nil
			}
		}
	}

	if text, title, ok := extractReadable(html, pageURL); ok {
		page.Text = text
		page.Method = "readability"
		if page.Title == "" {
			page.Title = title
		}
		return page, nil
	}

	page.Text = mainText(doc, DefaultTextSelectors(), nil)
	page.Method = "selectors"
	return page, nil
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using contentSelectors.
// If no content selectors match, it falls back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return mainText(doc, contentSelectors, noiseSelectors), nil
}

// DefaultTextSelectors returns standard selectors for general web content,
// most specific first.
func DefaultTextSelectors() []string {
	return []string{
		"main",
		"article",
		".post-content",
		".entry-content",
		".main-content",
		"#main-content",
		".content",
		"#content",
	}
}

func mainText(doc *goquery.Document, contentSelectors, noiseSelectors []string) string {
	doc.Find(baseNoise).Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	return ingestion.CleanText(blockText(mainContent))
}

// blockText reads text with a line break after block-level elements so that
// paragraphs do not run together.
func blockText(sel *goquery.Selection) string {
	sel.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, section, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return sel.Text()
}

func extractReadable(html, pageURL string) (text, title string, ok bool) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", "", false
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return "", "", false
	}

	text = ingestion.CleanText(article.TextContent)
	if ingestion.Length(text) < minReadableLength {
		return "", "", false
	}
	return text, strings.TrimSpace(article.Title), true
}

func documentTitle(doc *goquery.Document) string {
	if title := ingestion.CollapseWhitespace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og := metaContent(doc, "og:title"); og != "" {
		return og
	}
	return ingestion.CollapseWhitespace(doc.Find("h1").First().Text())
}

func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := doc.Find(fmt.Sprintf(`meta[name=%q], meta[property=%q]`, name, name)).First()
		if content, ok := sel.Attr("content"); ok {
			if content = ingestion.CollapseWhitespace(content); content != "" {
				return content
			}
		}
	}
	return ""
}
