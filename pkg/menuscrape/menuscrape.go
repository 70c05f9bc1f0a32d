package menuscrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jmylchreest/menuscrape/internal/crawler"
	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/internal/storage"
	"github.com/jmylchreest/menuscrape/pkg/extractor"
	"github.com/jmylchreest/menuscrape/pkg/fetcher"
	"github.com/jmylchreest/menuscrape/pkg/menu"
	"github.com/jmylchreest/menuscrape/pkg/placeid"
)

// Sink receives scrape output. Re-exported from internal/storage.
type Sink = storage.Sink

// MemorySink is an in-memory Sink.
type MemorySink = storage.MemorySink

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink { return storage.NewMemorySink() }

var (
	// ErrInvalidTarget is returned for a target that fails validation.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrStoreIDRequired is returned when persisting a target without an
	// internal store id.
	ErrStoreIDRequired = errors.New("store id required to persist results")
)

// Target identifies one store to scrape. NaverID wins over URL when both
// are set.
type Target struct {
	StoreID int64  `json:"store_id" yaml:"store_id" validate:"gte=0"`
	NaverID string `json:"naver_id" yaml:"naver_id" validate:"required_without=URL,omitempty,numeric"`
	URL     string `json:"url" yaml:"url" validate:"omitempty,url"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the target fields.
func (t Target) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return nil
}

// Key identifies the target for deduplication within a batch.
func (t Target) Key() string {
	if id := strings.TrimSpace(t.NaverID); id != "" {
		return id
	}
	if id, err := placeid.FromURL(t.URL); err == nil {
		return id
	}
	return t.URL
}

// Result is the outcome of scraping one store.
type Result struct {
	JobID         string              `json:"job_id" yaml:"job_id"`
	RunID         string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StoreID       int64               `json:"store_id" yaml:"store_id"`
	NaverStoreID  string              `json:"naver_store_id" yaml:"naver_store_id"`
	URL           string              `json:"url,omitempty" yaml:"url,omitempty"`
	MenuCount     int                 `json:"menu_count" yaml:"menu_count"`
	Menus         []menu.Record       `json:"menus" yaml:"menus"`
	Strategy      string              `json:"strategy" yaml:"strategy"`
	Trace         []extractor.Attempt `json:"trace,omitempty" yaml:"trace,omitempty"`
	Stats         menu.Stats          `json:"stats" yaml:"stats"`
	Saved         int                 `json:"saved,omitempty" yaml:"saved,omitempty"`
	ScrapedAt     time.Time           `json:"scraped_at" yaml:"scraped_at"`
	FetchDuration time.Duration       `json:"fetch_duration" yaml:"fetch_duration"`
	ErrorMessage  string              `json:"error,omitempty" yaml:"error,omitempty"`
	Error         error               `json:"-" yaml:"-"`
}

// Scraper is the main entry point for menu scraping.
type Scraper struct {
	fetcher  fetcher.Fetcher
	pipeline *extractor.Pipeline
	sink     storage.Sink
	config   Config
}

// New creates a Scraper.
func New(opts ...Option) (*Scraper, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := cfg.Fetcher
	if f == nil {
		var err error
		f, err = fetcher.New(cfg.FetchMode, cfg.Fetch)
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
	}

	p := cfg.Pipeline
	if p == nil {
		var popts []extractor.Option
		if cfg.Selectors != nil {
			popts = append(popts, extractor.WithSelectors(*cfg.Selectors))
		}
		p = extractor.NewPipeline(popts...)
	}

	return &Scraper{
		fetcher:  f,
		pipeline: p,
		sink:     cfg.Sink,
		config:   cfg,
	}, nil
}

// Scrape resolves, fetches and extracts one store. With a sink configured
// the run is logged and its records and statistics are stored; a failed
// run still closes its log entry.
func (s *Scraper) Scrape(ctx context.Context, t Target) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if s.sink != nil && t.StoreID == 0 {
		return nil, ErrStoreIDRequired
	}

	naverID, err := s.resolve(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("resolve store id: %w", err)
	}
	log := logger.ForStore(fmt.Sprint(t.StoreID), naverID)

	if s.sink == nil {
		return s.scrape(ctx, t, naverID)
	}

	logID, err := s.sink.StartLog(ctx, t.StoreID, naverID)
	if err != nil {
		return nil, fmt.Errorf("start scraping log: %w", err)
	}
	// The log is closed even when ctx was cancelled mid-run.
	done := context.WithoutCancel(ctx)

	res, err := s.scrape(ctx, t, naverID)
	if err != nil {
		if cerr := s.sink.CompleteLog(done, logID, 0, false, err.Error()); cerr != nil {
			log.Warn("failed to close scraping log", "log_id", logID, "error", cerr)
		}
		return nil, err
	}

	saved, err := s.sink.SaveMenus(ctx, t.StoreID, naverID, res.Menus)
	if err != nil {
		err = fmt.Errorf("save menus: %w", err)
		if cerr := s.sink.CompleteLog(done, logID, 0, false, err.Error()); cerr != nil {
			log.Warn("failed to close scraping log", "log_id", logID, "error", cerr)
		}
		return nil, err
	}
	res.Saved = saved

	if len(res.Menus) > 0 {
		if err := s.sink.SaveStats(ctx, t.StoreID, naverID, res.Stats); err != nil {
			log.Warn("failed to save menu stats", "error", err)
		}
	}

	if err := s.sink.CompleteLog(done, logID, saved, true, ""); err != nil {
		log.Warn("failed to close scraping log", "log_id", logID, "error", err)
	}
	log.Info("menus saved", "saved", saved, "menus", res.MenuCount)
	return res, nil
}

func (s *Scraper) resolve(ctx context.Context, t Target) (string, error) {
	if id := strings.TrimSpace(t.NaverID); id != "" {
		return id, nil
	}
	return placeid.Resolve(ctx, s.fetcher, t.URL)
}

func (s *Scraper) scrape(ctx context.Context, t Target, naverID string) (*Result, error) {
	pageURL := fetcher.MenuURL(naverID)

	fetchStart := time.Now()
	content, err := s.fetcher.Fetch(ctx, pageURL, fetcher.Options{})
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	ext, err := s.pipeline.ExtractReader(strings.NewReader(content.HTML), content.ContentType, naverID)
	if err != nil {
		return nil, fmt.Errorf("extract menus: %w", err)
	}

	logger.Info("extracted",
		"naver_id", naverID,
		"menus", len(ext.Records),
		"strategy", ext.Strategy,
		"fetch", fetchDuration.Round(time.Millisecond))

	records := ext.Records
	if records == nil {
		records = []menu.Record{}
	}
	return &Result{
		JobID:         uuid.NewString(),
		StoreID:       t.StoreID,
		NaverStoreID:  naverID,
		URL:           content.URL,
		MenuCount:     len(records),
		Menus:         records,
		Strategy:      ext.Strategy,
		Trace:         ext.Trace,
		Stats:         menu.Summarize(records),
		ScrapedAt:     content.FetchedAt,
		FetchDuration: fetchDuration,
	}, nil
}

// ScrapeMany scrapes targets concurrently and streams one result per
// distinct target. Failures arrive as results with Error set. A
// concurrency below one keeps the configured value. Cancelling ctx ends
// the stream early: targets not yet started produce no result.
func (s *Scraper) ScrapeMany(ctx context.Context, targets []Target, concurrency int) <-chan *Result {
	cfg := s.config.Crawl
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	c := crawler.New(cfg)

	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = t.Key()
		if crawler.NormalizeKey(keys[i]) == "" {
			// Keep unkeyed targets so they report their validation error.
			keys[i] = fmt.Sprintf("target#%d", i)
		}
	}

	results := make(chan *Result, len(targets))
	go func() {
		defer close(results)
		summary := c.Run(ctx, keys, func(ctx context.Context, it crawler.Item) {
			t := targets[it.Index]
			var res *Result
			err := ctx.Err()
			if err == nil {
				res, err = s.Scrape(ctx, t)
			}
			if err != nil {
				logger.Warn("scrape failed", "run_id", c.RunID(), "target", it.Key, "error", err)
				naverID := strings.TrimSpace(t.NaverID)
				link := t.URL
				if link == "" && placeid.IsID(naverID) {
					link = placeid.StandardURL(naverID)
				}
				res = &Result{
					JobID:        uuid.NewString(),
					StoreID:      t.StoreID,
					NaverStoreID: naverID,
					URL:          link,
					Menus:        []menu.Record{},
					ScrapedAt:    time.Now(),
					ErrorMessage: err.Error(),
					Error:        err,
				}
			}
			res.RunID = c.RunID()
			results <- res
		})
		logger.Info("batch complete",
			"run_id", summary.RunID,
			"processed", summary.Processed,
			"skipped", summary.Skipped,
			"invalid", summary.Invalid,
			"duration", summary.Duration.Round(time.Millisecond))
	}()

	return results
}

// Close releases the fetcher.
func (s *Scraper) Close() error {
	if s.fetcher != nil {
		return s.fetcher.Close()
	}
	return nil
}

// FetchMode returns the fetcher type in use.
func (s *Scraper) FetchMode() string {
	return s.fetcher.Type()
}
