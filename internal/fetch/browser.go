package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// BrowserFetcher renders pages in headless Chrome. It is used as a second
// attempt for pages whose static HTML yields too little text, typically
// JavaScript-rendered sites. Requires Chrome/Chromium on the host.
type BrowserFetcher struct {
	Timeout time.Duration
	Settle  time.Duration // wait after the body is ready for scripts to render
	Logger  zerolog.Logger
}

// NewBrowserFetcher returns a BrowserFetcher with the given per-page timeout.
func NewBrowserFetcher(timeout time.Duration, logger zerolog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		Timeout: timeout,
		Settle:  2 * time.Second,
		Logger:  logger.With().Str("component", "browser").Logger(),
	}
}

// Fetch implements Fetcher.
func (b *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	b.Logger.Debug().Str("url", urlStr).Msg("starting headless browser")

	allocCtx, cancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: classify(err), Message: "browser rendering failed", Cause: err}
	}

	b.Logger.Debug().Str("url", urlStr).Int("bytes", len(html)).Msg("rendered page")
	return &Result{URL: urlStr, HTML: html, ContentType: "text/html", StatusCode: 200}, nil
}
