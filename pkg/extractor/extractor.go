// Package extractor recovers menu records from a storefront page using an
// ordered cascade of independent strategies.
package extractor

import (
	"errors"
	"net/url"
	"strings"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// ErrExtractionFailed marks a pipeline-level failure, as opposed to a page
// on which no strategy found anything. Check with errors.Is.
var ErrExtractionFailed = errors.New("extraction failed")

// Strategy recovers menu records from a parsed document.
type Strategy interface {
	// Extract returns the records found in doc. An empty result is not an
	// error; it sends the pipeline on to the next strategy.
	Extract(doc *Document, storeID string) ([]menu.Record, error)

	// Name returns the strategy identifier.
	Name() string
}

// Strategy names, as reported in Result.Strategy.
const (
	NameStructural  = "structural"
	NameTextPattern = "text_pattern"
	NameEmbedded    = "embedded_data"
	NamePlaceholder = "placeholder"
)

// resolveURL makes ref absolute against menu.BaseOrigin. Unparseable
// references are returned unchanged.
func resolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	base, _ := url.Parse(menu.BaseOrigin)
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
