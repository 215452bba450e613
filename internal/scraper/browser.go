package scraper

import (
	"context"
	"errors"

	"github.com/chromedp/chromedp"
)

// BrowserLoader renders pages in headless Chrome. It is slower than
// HTTPLoader but gets through pages that require JavaScript challenges.
type BrowserLoader struct {
	// ExecPath overrides the Chrome binary; empty uses the default lookup.
	ExecPath string
}

func (b *BrowserLoader) Load(ctx context.Context, pageURL, userAgent, proxy string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	if html == "" {
		return nil, errors.New("browser returned an empty page")
	}
	return []byte(html), nil
}
