// Package menuscrape provides the public API for scraping storefront menus:
// resolve a store, fetch its menu page, run the extraction pipeline and
// hand the result to a sink.
package menuscrape

import (
	"time"

	"github.com/jmylchreest/menuscrape/internal/crawler"
	"github.com/jmylchreest/menuscrape/internal/storage"
	"github.com/jmylchreest/menuscrape/pkg/extractor"
	"github.com/jmylchreest/menuscrape/pkg/fetcher"
)

// Config holds all Scraper configuration.
type Config struct {
	// Fetching
	FetchMode string // static or dynamic
	Fetch     fetcher.Config
	Fetcher   fetcher.Fetcher // overrides FetchMode and Fetch when set

	// Extraction
	Selectors *extractor.Selectors
	Pipeline  *extractor.Pipeline // overrides Selectors when set

	// Persistence; nil disables it
	Sink storage.Sink

	// Batches
	Crawl crawler.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FetchMode: fetcher.TypeStatic,
		Fetch:     fetcher.DefaultConfig(),
		Crawl:     crawler.DefaultConfig(),
	}
}

// Option configures a Scraper.
type Option func(*Config)

// WithFetchMode sets the fetch mode (static, dynamic).
func WithFetchMode(mode string) Option {
	return func(c *Config) {
		c.FetchMode = mode
	}
}

// WithFetcher injects a fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.Fetch.UserAgent = ua
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Fetch.Timeout = d
	}
}

// WithMaxBodySize caps response bodies in bytes.
func WithMaxBodySize(n int) Option {
	return func(c *Config) {
		c.Fetch.MaxBodySize = n
	}
}

// WithSelectors overrides the structural selectors.
func WithSelectors(sel extractor.Selectors) Option {
	return func(c *Config) {
		c.Selectors = &sel
	}
}

// WithPipeline injects an extraction pipeline.
func WithPipeline(p *extractor.Pipeline) Option {
	return func(c *Config) {
		c.Pipeline = p
	}
}

// WithSink enables persistence.
func WithSink(s Sink) Option {
	return func(c *Config) {
		c.Sink = s
	}
}

// WithDelay sets the delay before each request of a batch.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Crawl.Delay = d
	}
}

// WithConcurrency sets the number of concurrent scrapes in a batch.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Crawl.Concurrency = n
	}
}

// WithMaxTargets limits how many targets a batch processes.
func WithMaxTargets(n int) Option {
	return func(c *Config) {
		c.Crawl.MaxItems = n
	}
}
