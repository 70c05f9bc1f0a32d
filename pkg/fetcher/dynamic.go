package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/menuscrape/internal/logger"
)

// DefaultWaitDuration gives client-side rendering time to fill the menu
// list after the body is visible.
const DefaultWaitDuration = 1500 * time.Millisecond

// DynamicFetcher uses chromedp for JavaScript-rendered pages.
type DynamicFetcher struct {
	config      Config
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewDynamic creates a dynamic fetcher backed by a headless browser. The
// browser is started lazily on the first Fetch.
func NewDynamic(cfg Config) (*DynamicFetcher, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "ko-KR"),
		chromedp.UserAgent(cfg.UserAgent),
		// mobile viewport, the storefront lays out menus for phones
		chromedp.WindowSize(412, 915),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	logger.Debug("dynamic fetcher browser allocator created", "user_agent", cfg.UserAgent)

	return &DynamicFetcher{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Fetch renders the page in a fresh tab and returns the resulting DOM.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx)
	defer cancelBrowser()

	// stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancelBrowser)
	defer stop()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	waitSelector := coalesce(opts.WaitForSelector, "body")
	wait := opts.WaitDuration
	if wait == 0 {
		wait = DefaultWaitDuration
	}

	var html, title, location string
	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitVisible(waitSelector),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
		chromedp.Location(&location),
	}

	logger.Debug("dynamic fetch starting", "url", targetURL, "wait_selector", waitSelector, "timeout", timeout)
	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("browser automation failed: %w", err)
	}
	if html == "" {
		return result, ErrEmptyBody
	}

	result.URL = coalesce(location, targetURL)
	result.HTML = html
	result.Title = title
	result.ContentType = "text/html; charset=utf-8"
	// chromedp doesn't easily expose status codes
	result.StatusCode = 200

	logger.Debug("dynamic fetch complete", "url", result.URL, "html_size", len(html))
	return result, nil
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return TypeDynamic
}
