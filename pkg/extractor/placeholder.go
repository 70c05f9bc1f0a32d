package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

const (
	// PlaceholderSuffix is appended to the store title to name the
	// placeholder record.
	PlaceholderSuffix = " 기본 메뉴"

	// PlaceholderDescription marks a record that stands in for a menu that
	// could not be read.
	PlaceholderDescription = "메뉴 정보를 자동으로 가져올 수 없습니다."
)

var titleClassRe = regexp.MustCompile(`(?i)title`)

// PlaceholderExtractor emits a single stand-in record named after the page
// title so the store is still represented downstream.
type PlaceholderExtractor struct{}

// NewPlaceholder creates a placeholder extractor.
func NewPlaceholder() *PlaceholderExtractor {
	return &PlaceholderExtractor{}
}

// Name returns the strategy name.
func (e *PlaceholderExtractor) Name() string {
	return NamePlaceholder
}

// Extract returns one record when the page has a title heading, none
// otherwise.
func (e *PlaceholderExtractor) Extract(doc *Document, storeID string) ([]menu.Record, error) {
	heading := doc.Find("h1").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasClass(s, titleClassRe)
	})
	title := text(heading)
	if title == "" {
		return nil, nil
	}

	return []menu.Record{{
		Name:        title + PlaceholderSuffix,
		Description: menu.Str(PlaceholderDescription),
		Category:    menu.Str(menu.CategoryUncategorized),
		SourceID:    menu.DefaultSourceID(storeID),
	}}, nil
}
