package extractor

import (
	"regexp"
	"strings"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// menuLineRe matches the flattened "name_12,000_원description" rendering.
var menuLineRe = regexp.MustCompile(`([^_\n]+)_(\d{1,3}(?:,\d{3})*)_원([^_\n]*)`)

// TextPatternExtractor scans the visible text of the page for delimited
// name/price/description tokens.
type TextPatternExtractor struct{}

// NewTextPattern creates a text-pattern extractor.
func NewTextPattern() *TextPatternExtractor {
	return &TextPatternExtractor{}
}

// Name returns the strategy name.
func (e *TextPatternExtractor) Name() string {
	return NameTextPattern
}

// Extract returns one record per distinct name, in document order.
func (e *TextPatternExtractor) Extract(doc *Document, storeID string) ([]menu.Record, error) {
	var records []menu.Record
	seen := make(map[string]struct{})

	for _, m := range menuLineRe.FindAllStringSubmatch(doc.VisibleText(), -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var price *int
		if v, ok := parseGrouped(m[2]); ok {
			price = &v
		}

		records = append(records, menu.Record{
			Name:        name,
			Price:       price,
			Description: menu.Str(strings.TrimSpace(m[3])),
			SourceID:    menu.SourceID(storeID, len(records)),
		})
	}
	return records, nil
}
