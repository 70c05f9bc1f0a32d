package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/menuscrape/internal/logger"
)

// Config holds batch settings.
type Config struct {
	Delay       time.Duration // Delay before each request
	Concurrency int           // Max concurrent scrapes
	MaxItems    int           // Max items to process (0 = unlimited)
}

// DefaultConfig returns conservative defaults for a single origin.
func DefaultConfig() Config {
	return Config{
		Delay:       2 * time.Second,
		Concurrency: 1,
		MaxItems:    0, // unlimited
	}
}

// VisitFunc processes one item. It is called from multiple goroutines
// when Concurrency is above one.
type VisitFunc func(ctx context.Context, item Item)

// Summary describes a finished run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Queued    int           `json:"queued"`
	Skipped   int           `json:"skipped"`
	Invalid   int           `json:"invalid"`
	Processed int           `json:"processed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Crawler runs a batch of keyed items.
type Crawler struct {
	config Config
	runID  string
}

// New creates a Crawler with a fresh run id.
func New(cfg Config) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Crawler{
		config: cfg,
		runID:  uuid.NewString(),
	}
}

// RunID identifies this crawler's batch in logs and results.
func (c *Crawler) RunID() string {
	return c.runID
}

// Run visits every distinct key once and blocks until all visits return
// or ctx is cancelled. keys[i] is reported to visit with Index i. Keys that
// normalize to "" are counted as invalid and never visited.
//
// Once ctx is cancelled no further items are dispatched. An item already
// dispatched is still visited, with the cancelled ctx, even when the
// cancellation arrives during its delay.
func (c *Crawler) Run(ctx context.Context, keys []string, visit VisitFunc) Summary {
	start := time.Now()
	log := logger.With("run_id", c.runID)
	log.Debug("crawler starting",
		"items", len(keys),
		"max_items", c.config.MaxItems,
		"concurrency", c.config.Concurrency,
		"delay", c.config.Delay)

	summary := Summary{RunID: c.runID, StartedAt: start}

	queue := NewQueue()
	for i, key := range keys {
		if NormalizeKey(key) == "" {
			summary.Invalid++
			log.Warn("skipping invalid target key", "key", key, "index", i)
			continue
		}
		if queue.Add(key, i) {
			summary.Queued++
			continue
		}
		summary.Skipped++
		log.Info("skipping duplicate target", "key", key, "index", i)
	}

	sem := make(chan struct{}, c.config.Concurrency)
	var wg sync.WaitGroup

loop:
	for {
		if c.config.MaxItems > 0 && summary.Processed >= c.config.MaxItems {
			log.Debug("crawler reached max items limit", "max_items", c.config.MaxItems)
			break
		}

		if ctx.Err() != nil {
			break
		}

		item, ok := queue.Pop()
		if !ok {
			break
		}

		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)

		go func(it Item) {
			defer wg.Done()
			defer func() { <-sem }()

			if c.config.Delay > 0 {
				t := time.NewTimer(c.config.Delay)
				select {
				case <-ctx.Done():
					t.Stop()
				case <-t.C:
				}
			}

			log.Debug("crawler processing item", "key", it.Key, "index", it.Index)
			visit(ctx, it)
		}(item)

		summary.Processed++
	}

	wg.Wait()
	summary.Duration = time.Since(start)
	log.Debug("crawler finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
		"duration", summary.Duration.Round(time.Millisecond))
	return summary
}
