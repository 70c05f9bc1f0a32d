// Package fetcher retrieves storefront menu pages. Implement the Fetcher
// interface to plug in proxies, authentication or other transports.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Options controls fetching behavior. Zero values fall back to the
// fetcher's configuration.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic fetchers)
	WaitDuration    time.Duration // Additional wait after load
	Headers         map[string]string
}

// Content represents fetched page data.
type Content struct {
	URL         string // final URL after redirects
	HTML        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
	Truncated   bool // body hit the size cap
}

// Error types for distinguishing failure reasons.
var (
	// ErrStatus indicates a non-2xx response.
	ErrStatus = errors.New("unexpected status")
	// ErrEmptyBody indicates a successful response without content.
	ErrEmptyBody = errors.New("empty response body")
)

// Fetcher types.
const (
	TypeStatic  = "static"
	TypeDynamic = "dynamic"
)

// MenuOrigin hosts the mobile storefront pages.
const MenuOrigin = "https://m.place.naver.com"

// MenuURL returns the menu list page of a store.
func MenuURL(naverID string) string {
	return fmt.Sprintf("%s/restaurant/%s/menu/list", MenuOrigin, naverID)
}

// New creates a fetcher by type name.
func New(kind string, cfg Config) (Fetcher, error) {
	switch kind {
	case "", TypeStatic:
		return NewStatic(cfg), nil
	case TypeDynamic:
		return NewDynamic(cfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s", kind)
	}
}

// Config holds configuration shared by the fetchers.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int // bytes; 0 means unlimited
	Headers     map[string]string
}

// Browser-like defaults. The storefront serves its full markup only to
// browser user agents.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		MaxBodySize: 10 << 20,
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "ko-KR,ko;q=0.9,en;q=0.8",
			"Upgrade-Insecure-Requests": "1",
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Headers == nil {
		c.Headers = d.Headers
	}
	return c
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
