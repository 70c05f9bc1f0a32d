package extractor

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// Selectors locate the fields of one menu entry in the mobile storefront
// template. Every field selector is evaluated inside a fragment.
type Selectors struct {
	Fragment       string `mapstructure:"fragment" yaml:"fragment"`
	Name           string `mapstructure:"name" yaml:"name"`
	Description    string `mapstructure:"description" yaml:"description"`
	Recommendation string `mapstructure:"recommendation" yaml:"recommendation"` // wrapper of the marker
	Marker         string `mapstructure:"marker" yaml:"marker"`                 // inside Recommendation
	Price          string `mapstructure:"price" yaml:"price"`
	PriceEmphasis  string `mapstructure:"price_emphasis" yaml:"price_emphasis"` // inside Price
}

// DefaultSelectors returns the selectors of the current mobile template.
func DefaultSelectors() Selectors {
	return Selectors{
		Fragment:       "li.E2jtL",
		Name:           "span.lPzHi",
		Description:    "div.kPogF",
		Recommendation: "span.QM_zp",
		Marker:         "span",
		Price:          "div.GXS1X",
		PriceEmphasis:  "em",
	}
}

// Validate reports the first non-empty selector that does not compile.
// goquery treats an invalid selector as matching nothing, so overrides
// are checked up front.
func (s Selectors) Validate() error {
	fields := []struct{ name, sel string }{
		{"fragment", s.Fragment},
		{"name", s.Name},
		{"description", s.Description},
		{"recommendation", s.Recommendation},
		{"marker", s.Marker},
		{"price", s.Price},
		{"price_emphasis", s.PriceEmphasis},
	}
	for _, f := range fields {
		if f.sel == "" {
			continue
		}
		if _, err := cascadia.Compile(f.sel); err != nil {
			return fmt.Errorf("invalid %s selector %q: %w", f.name, f.sel, err)
		}
	}
	return nil
}

// merge fills empty fields of s from d.
func (s Selectors) merge(d Selectors) Selectors {
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}
	return Selectors{
		Fragment:       pick(s.Fragment, d.Fragment),
		Name:           pick(s.Name, d.Name),
		Description:    pick(s.Description, d.Description),
		Recommendation: pick(s.Recommendation, d.Recommendation),
		Marker:         pick(s.Marker, d.Marker),
		Price:          pick(s.Price, d.Price),
		PriceEmphasis:  pick(s.PriceEmphasis, d.PriceEmphasis),
	}
}

// StructuralExtractor reads menu entries from the document tree. When the
// template's fragment selector matches nothing it switches to the loosely
// matched generalized variant.
type StructuralExtractor struct {
	selectors Selectors
}

// NewStructural creates a structural extractor. Empty selector fields fall
// back to DefaultSelectors.
func NewStructural(sel Selectors) *StructuralExtractor {
	return &StructuralExtractor{selectors: sel.merge(DefaultSelectors())}
}

// Name returns the strategy name.
func (e *StructuralExtractor) Name() string {
	return NameStructural
}

type fragmentReader func(*goquery.Selection) (menu.Record, bool)

// Extract returns one record per fragment that carries any menu field.
func (e *StructuralExtractor) Extract(doc *Document, storeID string) ([]menu.Record, error) {
	fragments := doc.Find(e.selectors.Fragment)
	read := fragmentReader(e.readFragment)
	if fragments.Length() == 0 {
		fragments = genericFragments(doc)
		read = readGenericFragment
		logger.Debug("template selector matched nothing, using generalized selectors",
			"selector", e.selectors.Fragment,
			"fragments", fragments.Length())
	}

	var records []menu.Record
	fragments.Each(func(i int, s *goquery.Selection) {
		rec, ok := readSafely(read, s, i)
		if !ok {
			return
		}
		rec.SourceID = menu.SourceID(storeID, len(records))
		records = append(records, rec)
	})
	return records, nil
}

// readSafely confines a failure while reading one fragment to that fragment.
func readSafely(read fragmentReader, s *goquery.Selection, index int) (rec menu.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("skipping malformed fragment", "index", index, "panic", r)
			rec, ok = menu.Record{}, false
		}
	}()
	return read(s)
}

func (e *StructuralExtractor) readFragment(s *goquery.Selection) (menu.Record, bool) {
	sel := e.selectors

	name := text(s.Find(sel.Name))
	desc := text(s.Find(sel.Description))
	marker := text(s.Find(sel.Recommendation).First().Find(sel.Marker))

	var priceText string
	if wrap := s.Find(sel.Price).First(); wrap.Length() > 0 {
		if em := wrap.Find(sel.PriceEmphasis); em.Length() > 0 {
			priceText = text(em)
		} else {
			priceText = text(wrap)
		}
	}
	price := NormalizePrice(priceText)

	// section headers and spacers carry none of the fields
	if name == "" && desc == "" && marker == "" && price == nil {
		return menu.Record{}, false
	}

	return menu.Record{
		Name:        name,
		Price:       price,
		Description: menu.Str(desc),
		IsPopular:   marker != "",
	}, true
}
