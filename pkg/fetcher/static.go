package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/menuscrape/internal/logger"
)

// StaticFetcher uses Colly for plain HTTP fetching.
type StaticFetcher struct {
	config Config
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg Config) *StaticFetcher {
	return &StaticFetcher{config: cfg.withDefaults()}
}

// Fetch retrieves page content using Colly. Non-2xx responses are returned
// as ErrStatus.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	collectorOpts := []colly.CollectorOption{
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	}
	if f.config.MaxBodySize > 0 {
		collectorOpts = append(collectorOpts, colly.MaxBodySize(f.config.MaxBodySize))
	}
	c := colly.NewCollector(collectorOpts...)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range f.config.Headers {
			r.Headers.Set(k, v)
		}
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.URL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
		result.Truncated = f.config.MaxBodySize > 0 && len(r.Body) >= f.config.MaxBodySize
		logger.Debug("static fetch response received",
			"url", result.URL,
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", humanize.Bytes(uint64(len(r.Body))))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			fetchErr = fmt.Errorf("%w: %d %s", ErrStatus, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	logger.Debug("static fetch starting", "url", targetURL, "timeout", timeout)
	visitErr := c.Visit(targetURL)
	if fetchErr != nil {
		return result, fetchErr
	}
	if visitErr != nil {
		return result, fmt.Errorf("failed to visit URL: %w", visitErr)
	}
	if strings.TrimSpace(result.HTML) == "" {
		return result, ErrEmptyBody
	}
	if result.Truncated {
		logger.Warn("response body reached size cap",
			"url", result.URL,
			"limit", humanize.Bytes(uint64(f.config.MaxBodySize)))
	}

	result.Title = pageTitle(result.HTML)
	return result, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return TypeStatic
}

// pageTitle returns the document title, or "" if the markup has none.
func pageTitle(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
