package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// Class-token patterns for templates other than the known mobile one.
var (
	fragmentClassRe  = regexp.MustCompile(`(?i)menu|item|product`)
	nameClassRe      = regexp.MustCompile(`(?i)name|title`)
	priceClassRe     = regexp.MustCompile(`(?i)price|cost`)
	descClassRe      = regexp.MustCompile(`(?i)desc`)
	ratingClassRe    = regexp.MustCompile(`(?i)rating|score`)
	popularClassRe   = regexp.MustCompile(`(?i)popular|best`)
	signatureClassRe = regexp.MustCompile(`(?i)signature|recommend`)

	ratingRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

const (
	fragmentTags = "li, div, article"
	nameTags     = "h3, h4, span, div"
)

// hasClass reports whether any class token of s matches re.
func hasClass(s *goquery.Selection, re *regexp.Regexp) bool {
	class, _ := s.Attr("class")
	for _, tok := range strings.Fields(class) {
		if re.MatchString(tok) {
			return true
		}
	}
	return false
}

// findByClass returns the descendants of s matching tags whose class
// matches re.
func findByClass(s *goquery.Selection, tags string, re *regexp.Regexp) *goquery.Selection {
	return s.Find(tags).FilterFunction(func(_ int, c *goquery.Selection) bool {
		return hasClass(c, re)
	})
}

// nameNodes returns the name-labeled descendants of s, skipping those nested
// inside another name-labeled node.
func nameNodes(s *goquery.Selection) *goquery.Selection {
	all := findByClass(s, nameTags, nameClassRe)
	return all.FilterFunction(func(_ int, n *goquery.Selection) bool {
		return n.ParentsFiltered(nameTags).FilterSelection(all).Length() == 0
	})
}

// genericFragments finds menu-entry-like elements: a menu/item/product
// labeled element holding exactly one name-labeled node. A name-labeled
// element is never a fragment itself. Of nested candidates only the
// outermost is kept.
func genericFragments(doc *Document) *goquery.Selection {
	candidates := doc.Find(fragmentTags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasClass(s, fragmentClassRe) && !hasClass(s, nameClassRe) && nameNodes(s).Length() == 1
	})
	return candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(fragmentTags).FilterSelection(candidates).Length() == 0
	})
}

// readGenericFragment maps a loosely labeled fragment. Flags come from the
// presence of marker nodes, not their text.
func readGenericFragment(s *goquery.Selection) (menu.Record, bool) {
	nameSel := nameNodes(s)
	if nameSel.Length() == 0 {
		nameSel = s.Find(nameTags)
	}
	name := text(nameSel)
	if name == "" {
		return menu.Record{}, false
	}

	rec := menu.Record{Name: name}

	if p := findByClass(s, "span, div", priceClassRe); p.Length() > 0 {
		rec.Price = NormalizePrice(text(p))
	}
	if d := findByClass(s, "p, span, div", descClassRe); d.Length() > 0 {
		rec.Description = menu.Str(text(d))
	}
	if img := s.Find("img").First(); img.Length() > 0 {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		if src != "" {
			rec.ImageURL = menu.Str(resolveURL(src))
		}
	}
	if r := findByClass(s, "span, div", ratingClassRe); r.Length() > 0 {
		if m := ratingRe.FindString(text(r)); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				rec.Rating = &f
			}
		}
	}
	rec.IsPopular = findByClass(s, "span, div", popularClassRe).Length() > 0
	rec.IsSignature = findByClass(s, "span, div", signatureClassRe).Length() > 0

	return rec, true
}
