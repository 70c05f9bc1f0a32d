package menuscrape

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/menuscrape/internal/storage"
	"github.com/jmylchreest/menuscrape/pkg/extractor"
	"github.com/jmylchreest/menuscrape/pkg/fetcher"
	"github.com/jmylchreest/menuscrape/pkg/menu"
	"github.com/jmylchreest/menuscrape/pkg/placeid"
)

const menuPage = `<html><head><title>행복식당</title></head><body>
<ul>
  <li class="E2jtL"><span class="lPzHi">라면</span><div class="GXS1X">8,000</div></li>
  <li class="E2jtL"><span class="lPzHi">김밥</span><div class="kPogF">참치 김밥</div><div class="GXS1X"><em>4,500</em>원</div></li>
</ul>
</body></html>`

// pageFetcher serves pages by URL and records every request.
type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	err   error
	urls  []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string, _ fetcher.Options) (fetcher.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return fetcher.Content{}, f.err
	}
	html, ok := f.pages[url]
	if !ok {
		return fetcher.Content{}, fetcher.ErrStatus
	}
	return fetcher.Content{
		URL:         url,
		HTML:        html,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		FetchedAt:   time.Now(),
	}, nil
}

func (f *pageFetcher) Close() error { return nil }
func (f *pageFetcher) Type() string { return "stub" }

func newTestScraper(t *testing.T, f fetcher.Fetcher, opts ...Option) *Scraper {
	t.Helper()
	s, err := New(append([]Option{WithFetcher(f), WithDelay(0)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

// --- Target Tests ---

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"naver id", Target{NaverID: "1234567"}, false},
		{"url", Target{URL: "https://naver.me/abc"}, false},
		{"both", Target{StoreID: 3, NaverID: "1", URL: "https://m.place.naver.com/restaurant/1"}, false},
		{"empty", Target{}, true},
		{"non numeric id", Target{NaverID: "abc"}, true},
		{"bad url", Target{URL: "not a url"}, true},
		{"negative store id", Target{StoreID: -1, NaverID: "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
		})
	}
}

func TestTarget_Key(t *testing.T) {
	if k := (Target{NaverID: " 42 ", URL: "https://m.place.naver.com/restaurant/7"}).Key(); k != "42" {
		t.Errorf("Key() = %q, want 42", k)
	}
	if k := (Target{URL: "https://m.place.naver.com/restaurant/7/home"}).Key(); k != "7" {
		t.Errorf("Key() = %q, want 7", k)
	}
	if k := (Target{URL: "https://naver.me/xyz"}).Key(); k != "https://naver.me/xyz" {
		t.Errorf("Key() = %q, want the short link", k)
	}
}

// --- Scrape Tests ---

func TestScrape_NaverID(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{fetcher.MenuURL("1234"): menuPage}}
	s := newTestScraper(t, f)

	res, err := s.Scrape(context.Background(), Target{NaverID: "1234"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if res.NaverStoreID != "1234" || res.MenuCount != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Strategy != extractor.NameStructural {
		t.Errorf("Strategy = %q", res.Strategy)
	}
	if res.Menus[0].SourceID != "1234_0" || res.Menus[1].Name != "김밥" {
		t.Errorf("unexpected menus %+v", res.Menus)
	}
	if res.Stats.Total != 2 || res.Stats.MinPrice == nil || *res.Stats.MinPrice != 4500 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if res.JobID == "" {
		t.Error("expected a job id")
	}
}

func TestScrape_ResolvesURL(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{fetcher.MenuURL("98765"): menuPage}}
	s := newTestScraper(t, f)

	res, err := s.Scrape(context.Background(), Target{URL: "https://map.naver.com/p/entry/place/98765"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if res.NaverStoreID != "98765" {
		t.Errorf("NaverStoreID = %q", res.NaverStoreID)
	}
	if len(f.urls) != 1 {
		t.Errorf("expected only the menu page to be fetched, got %v", f.urls)
	}
}

func TestScrape_EmptyPage(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{fetcher.MenuURL("1"): "<html><body><p>준비중</p></body></html>"}}
	s := newTestScraper(t, f)

	res, err := s.Scrape(context.Background(), Target{NaverID: "1"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if res.MenuCount != 0 || res.Menus == nil {
		t.Errorf("expected an empty, non-nil menu list, got %+v", res.Menus)
	}
}

func TestScrape_InvalidTarget(t *testing.T) {
	s := newTestScraper(t, &pageFetcher{})
	if _, err := s.Scrape(context.Background(), Target{NaverID: "abc"}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestScrape_FetchError(t *testing.T) {
	s := newTestScraper(t, &pageFetcher{err: fetcher.ErrEmptyBody})
	_, err := s.Scrape(context.Background(), Target{NaverID: "1"})
	if !errors.Is(err, fetcher.ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

// --- Persistence Tests ---

func TestScrape_PersistsToSink(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{fetcher.MenuURL("1234"): menuPage}}
	sink := NewMemorySink()
	s := newTestScraper(t, f, WithSink(sink))

	res, err := s.Scrape(context.Background(), Target{StoreID: 10, NaverID: "1234"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if res.Saved != 2 {
		t.Errorf("Saved = %d, want 2", res.Saved)
	}

	if got := sink.Menus(10, "1234"); len(got) != 2 {
		t.Errorf("expected 2 stored menus, got %d", len(got))
	}
	if stats, ok := sink.Stats(10, "1234"); !ok || stats.Total != 2 {
		t.Errorf("stats = %+v, %v", stats, ok)
	}
	logs := sink.Logs()
	if len(logs) != 1 || logs[0].Status != storage.StatusSuccess || logs[0].MenuCount != 2 {
		t.Errorf("unexpected logs %+v", logs)
	}
}

func TestScrape_FailureClosesLog(t *testing.T) {
	sink := NewMemorySink()
	s := newTestScraper(t, &pageFetcher{err: errors.New("connection reset")}, WithSink(sink))

	if _, err := s.Scrape(context.Background(), Target{StoreID: 10, NaverID: "1234"}); err == nil {
		t.Fatal("expected an error")
	}

	logs := sink.Logs()
	if len(logs) != 1 || logs[0].Status != storage.StatusFailed {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if !strings.Contains(logs[0].Error, "connection reset") {
		t.Errorf("log error = %q", logs[0].Error)
	}
	if _, ok := sink.Stats(10, "1234"); ok {
		t.Error("stats should not be written for a failed scrape")
	}
}

func TestScrape_NoStatsWithoutMenus(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{fetcher.MenuURL("1"): "<html><body></body></html>"}}
	sink := NewMemorySink()
	s := newTestScraper(t, f, WithSink(sink))

	if _, err := s.Scrape(context.Background(), Target{StoreID: 1, NaverID: "1"}); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if _, ok := sink.Stats(1, "1"); ok {
		t.Error("stats should be skipped when no menus were found")
	}
	if logs := sink.Logs(); logs[0].Status != storage.StatusSuccess {
		t.Errorf("status = %q", logs[0].Status)
	}
}

func TestScrape_PersistRequiresStoreID(t *testing.T) {
	s := newTestScraper(t, &pageFetcher{}, WithSink(NewMemorySink()))
	if _, err := s.Scrape(context.Background(), Target{NaverID: "1"}); !errors.Is(err, ErrStoreIDRequired) {
		t.Errorf("expected ErrStoreIDRequired, got %v", err)
	}
}

// --- ScrapeMany Tests ---

func TestScrapeMany(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		fetcher.MenuURL("1"): menuPage,
		fetcher.MenuURL("2"): menuPage,
	}}
	s := newTestScraper(t, f)

	targets := []Target{
		{NaverID: "1"},
		{NaverID: "2"},
		{URL: "https://m.place.naver.com/restaurant/1/menu/list"}, // duplicate of 1
		{NaverID: "3"},                                            // not served
		{},                                                        // invalid
	}

	var ok, failed int
	var runID string
	for res := range s.ScrapeMany(context.Background(), targets, 2) {
		if runID == "" {
			runID = res.RunID
		} else if res.RunID != runID {
			t.Errorf("results carry different run ids: %q vs %q", res.RunID, runID)
		}
		if res.Error != nil {
			failed++
			if res.ErrorMessage == "" {
				t.Error("failed result should carry an error message")
			}
			continue
		}
		ok++
		if res.MenuCount != 2 {
			t.Errorf("store %s: %d menus", res.NaverStoreID, res.MenuCount)
		}
	}

	if ok != 2 || failed != 2 {
		t.Errorf("ok = %d, failed = %d, want 2 and 2", ok, failed)
	}
}

func TestScrapeMany_UnparsableURLs(t *testing.T) {
	s := newTestScraper(t, &pageFetcher{})

	targets := []Target{{URL: "https://"}, {URL: "http://"}}

	var got int
	for res := range s.ScrapeMany(context.Background(), targets, 1) {
		got++
		if !errors.Is(res.Error, ErrInvalidTarget) {
			t.Errorf("%q: error = %v, want ErrInvalidTarget", res.URL, res.Error)
		}
	}
	if got != len(targets) {
		t.Errorf("got %d results, want %d", got, len(targets))
	}
}

func TestScrapeMany_FailedResultCarriesStoreURL(t *testing.T) {
	s := newTestScraper(t, &pageFetcher{err: fetcher.ErrEmptyBody})

	for res := range s.ScrapeMany(context.Background(), []Target{{NaverID: "42"}}, 1) {
		if res.Error == nil {
			t.Fatal("expected a failed result")
		}
		if want := placeid.StandardURL("42"); res.URL != want {
			t.Errorf("URL = %q, want %q", res.URL, want)
		}
	}
}

// --- Tabular Tests ---

func TestResult_Rows(t *testing.T) {
	r := Result{
		StoreID:      5,
		NaverStoreID: "99",
		Strategy:     extractor.NameStructural,
		Menus: []menu.Record{
			{Name: "냉면", Price: menu.Int(11000), SourceID: "99_0", IsPopular: true},
			{Name: "만두", SourceID: "99_1", Rating: menu.Float(4.5)},
		},
	}

	rows := r.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if len(row) != len(r.Columns()) {
			t.Errorf("row has %d cells, want %d", len(row), len(r.Columns()))
		}
	}
	if rows[0][4] != "11000" || rows[0][10] != "true" {
		t.Errorf("unexpected first row %v", rows[0])
	}
	if rows[1][4] != "" || rows[1][8] != "4.5" {
		t.Errorf("unexpected second row %v", rows[1])
	}

	empty := Result{NaverStoreID: "1", ErrorMessage: "boom"}
	if rows := empty.Rows(); len(rows) != 1 || rows[0][len(rows[0])-1] != "boom" {
		t.Errorf("failed result rows = %v", rows)
	}
}
