package menu

// Stats aggregates a batch of records for one store.
type Stats struct {
	Total     int      `json:"total_menus" yaml:"total_menus"`
	MinPrice  *int     `json:"min_price" yaml:"min_price"`
	AvgPrice  *float64 `json:"avg_price" yaml:"avg_price"`
	MaxPrice  *int     `json:"max_price" yaml:"max_price"`
	Popular   int      `json:"popular_menu_count" yaml:"popular_menu_count"`
	Signature int      `json:"signature_menu_count" yaml:"signature_menu_count"`
}

// Summarize computes Stats over records. Price aggregates only consider
// records with a known, non-zero price; they stay nil when none qualify.
func Summarize(records []Record) Stats {
	s := Stats{Total: len(records)}

	var sum, n int
	for _, r := range records {
		if r.IsPopular {
			s.Popular++
		}
		if r.IsSignature {
			s.Signature++
		}
		if !r.HasPrice() || *r.Price == 0 {
			continue
		}
		p := *r.Price
		if s.MinPrice == nil || p < *s.MinPrice {
			s.MinPrice = Int(p)
		}
		if s.MaxPrice == nil || p > *s.MaxPrice {
			s.MaxPrice = Int(p)
		}
		sum += p
		n++
	}
	if n > 0 {
		s.AvgPrice = Float(float64(sum) / float64(n))
	}
	return s
}
