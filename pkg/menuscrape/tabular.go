package menuscrape

import (
	"strconv"
	"time"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

var resultColumns = []string{
	"store_id", "naver_store_id", "source_id", "name", "price", "description",
	"category", "image_url", "rating", "review_count", "is_popular",
	"is_signature", "strategy", "scraped_at", "error",
}

// Columns implements output.Tabular.
func (r Result) Columns() []string {
	return resultColumns
}

// Rows implements output.Tabular with one row per menu. A result without
// menus yields a single row so failures stay visible.
func (r Result) Rows() [][]string {
	if len(r.Menus) == 0 {
		return [][]string{r.row(menu.Record{})}
	}
	rows := make([][]string, 0, len(r.Menus))
	for _, m := range r.Menus {
		rows = append(rows, r.row(m))
	}
	return rows
}

func (r Result) row(m menu.Record) []string {
	price := ""
	if m.HasPrice() {
		price = strconv.Itoa(*m.Price)
	}
	rating := ""
	if m.Rating != nil {
		rating = strconv.FormatFloat(*m.Rating, 'f', -1, 64)
	}
	scraped := ""
	if !r.ScrapedAt.IsZero() {
		scraped = r.ScrapedAt.Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(r.StoreID, 10),
		r.NaverStoreID,
		m.SourceID,
		m.Name,
		price,
		menu.Deref(m.Description),
		menu.Deref(m.Category),
		menu.Deref(m.ImageURL),
		rating,
		strconv.Itoa(m.ReviewCount),
		strconv.FormatBool(m.IsPopular),
		strconv.FormatBool(m.IsSignature),
		r.Strategy,
		scraped,
		r.ErrorMessage,
	}
}
