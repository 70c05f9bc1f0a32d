package extractor

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// envelope locates the start of a JSON value inside a script payload. The
// match ends on the value's opening bracket.
type envelope struct {
	name   string
	prefix *regexp.Regexp
}

var envelopes = []envelope{
	{name: "initial_state", prefix: regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*\{`)},
	{name: "next_data", prefix: regexp.MustCompile(`window\.__NEXT_DATA__\s*=\s*\{`)},
	{name: "menu", prefix: regexp.MustCompile(`"menu"\s*:\s*\[`)},
	{name: "menus", prefix: regexp.MustCompile(`"menus"\s*:\s*\[`)},
}

// menuListKeys are tried in order on a decoded state object.
var menuListKeys = []string{"menu", "menus", "items", "products"}

// EmbeddedDataExtractor reads menu lists out of JSON state blobs embedded in
// inline scripts.
type EmbeddedDataExtractor struct{}

// NewEmbeddedData creates an embedded-data extractor.
func NewEmbeddedData() *EmbeddedDataExtractor {
	return &EmbeddedDataExtractor{}
}

// Name returns the strategy name.
func (e *EmbeddedDataExtractor) Name() string {
	return NameEmbedded
}

// Extract concatenates the menu lists of every script in document order.
// Scripts whose JSON does not decode are skipped.
func (e *EmbeddedDataExtractor) Extract(doc *Document, storeID string) ([]menu.Record, error) {
	var records []menu.Record
	offset := 0

	for i, script := range doc.Scripts() {
		if !strings.Contains(strings.ToLower(script), "menu") {
			continue
		}
		value, form, err := decodeEnvelope(script)
		if err != nil {
			logger.Debug("skipping script with malformed embedded data",
				"script", i,
				"envelope", form,
				"error", err)
			continue
		}
		if form == "" {
			continue
		}

		// bare array envelopes hold the list itself
		items := value.Array()
		if !value.IsArray() {
			items = menuList(value)
		}
		for j, item := range items {
			if !item.IsObject() {
				continue
			}
			rec := recordFromJSON(item, j)
			rec.SourceID = menu.SourceID(storeID, offset+j)
			records = append(records, rec)
		}
		offset += len(items)
	}
	return records, nil
}

// decodeEnvelope decodes the JSON value of the first envelope form found in
// script. An empty form means no envelope matched.
func decodeEnvelope(script string) (gjson.Result, string, error) {
	for _, env := range envelopes {
		loc := env.prefix.FindStringIndex(script)
		if loc == nil {
			continue
		}
		// the opening bracket is the last byte of the match
		dec := json.NewDecoder(strings.NewReader(script[loc[1]-1:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return gjson.Result{}, env.name, fmt.Errorf("decode %s: %w", env.name, err)
		}
		return gjson.ParseBytes(raw), env.name, nil
	}
	return gjson.Result{}, "", nil
}

// menuList resolves the menu array of a state object. Empty arrays do not
// count as a hit.
func menuList(state gjson.Result) []gjson.Result {
	for _, key := range menuListKeys {
		v := state.Get(key)
		if v.IsArray() {
			if items := v.Array(); len(items) > 0 {
				return items
			}
		}
	}
	return nil
}

// recordFromJSON maps one list item. Price is only taken from a JSON number.
func recordFromJSON(item gjson.Result, index int) menu.Record {
	rec := menu.Record{
		Name:        fmt.Sprintf("메뉴 %d", index+1),
		Description: optString(item, "description", "desc"),
		Category:    optString(item, "category"),
		IsPopular:   item.Get("isPopular").Bool(),
		IsSignature: item.Get("isSignature").Bool(),
	}
	if name := optString(item, "name", "title"); name != nil {
		rec.Name = *name
	}
	if p, ok := countable(item.Get("price")); ok {
		rec.Price = menu.Int(p)
	}
	if img := optString(item, "image", "imageUrl"); img != nil {
		rec.ImageURL = menu.Str(resolveURL(*img))
	}
	if r := item.Get("rating"); r.Type == gjson.Number {
		rec.Rating = menu.Float(r.Num)
	}
	if c, ok := countable(item.Get("reviewCount")); ok {
		rec.ReviewCount = c
	}
	return rec
}

// countable reads a non-negative JSON number that fits in an int.
func countable(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number || v.Num < 0 || v.Num >= float64(math.MaxInt) {
		return 0, false
	}
	return int(v.Int()), true
}

// optString returns the first present, non-null key as a string.
func optString(item gjson.Result, keys ...string) *string {
	for _, key := range keys {
		v := item.Get(key)
		if v.Exists() && v.Type != gjson.Null {
			return menu.Str(v.String())
		}
	}
	return nil
}
