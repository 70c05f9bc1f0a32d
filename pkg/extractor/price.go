package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches a thousands-grouped integer ("12,000"), or failing that a
// plain run of digits ("12000").
var priceRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

// NormalizePrice returns the first integer amount found in text, or nil when
// text holds no numeral. Grouping commas are stripped.
func NormalizePrice(text string) *int {
	m := priceRe.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		// overflow
		return nil
	}
	return &n
}

// parseGrouped parses a run already known to be a grouped integer.
func parseGrouped(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return n, err == nil
}
