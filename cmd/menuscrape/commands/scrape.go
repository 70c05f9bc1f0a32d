package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/internal/storage"
	"github.com/jmylchreest/menuscrape/pkg/extractor"
	"github.com/jmylchreest/menuscrape/pkg/fetcher"
	"github.com/jmylchreest/menuscrape/pkg/menuscrape"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch stores and extract their menus",
	Long: `Fetch the menu page of one or more stores and extract menu records.

A store is named by its Naver place id (--naver-id), by any Naver place
or share link (--url), or by a targets file (--targets) in CSV, NDJSON
or YAML form. --store-id is the internal id results are stored under.

Examples:
  # Single store
  menuscrape scrape --naver-id 1234567

  # Share link, stored in PostgreSQL
  menuscrape scrape --url "https://naver.me/xYz" --store-id 42 --persist

  # Batch with two workers and a 3s delay
  menuscrape scrape --targets stores.csv -c 2 --delay 3s --format jsonl`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()

	// Targets
	flags.String("naver-id", "", "Naver place id of the store")
	flags.Int64("store-id", 0, "internal store id results are stored under")
	flags.StringP("url", "u", "", "Naver place or share link of the store")
	flags.StringP("targets", "t", "", "targets file (csv, ndjson/jsonl, yaml)")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, csv")
	flags.Bool("trace", false, "include the strategy trace in the output")

	// Persistence
	flags.Bool("persist", false, "store results in PostgreSQL")
	flags.Bool("dry-run", false, "run persistence against an in-memory store")

	// Fetch settings
	flags.String("fetch-mode", fetcher.TypeStatic, "fetch mode: static, dynamic")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.String("user-agent", "", "override the browser user agent")
	flags.String("max-body-size", "10MB", "max response body size (e.g., 5MB, 0=unlimited)")

	// Batch settings
	flags.Duration("delay", 2*time.Second, "delay before each request")
	flags.IntP("concurrency", "c", 1, "concurrent scrapes")
	flags.Int("max-targets", 0, "max targets to process (0=unlimited)")

	// Bind to viper
	_ = viper.BindPFlag("fetch.mode", flags.Lookup("fetch-mode"))
	_ = viper.BindPFlag("fetch.timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("fetch.user_agent", flags.Lookup("user-agent"))
	_ = viper.BindPFlag("fetch.max_body_size", flags.Lookup("max-body-size"))
	_ = viper.BindPFlag("crawl.delay", flags.Lookup("delay"))
	_ = viper.BindPFlag("crawl.concurrency", flags.Lookup("concurrency"))
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("scrape command starting")

	targets, err := buildTargets(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}
	if len(targets) == 0 {
		return cmd.Help()
	}
	logger.Debug("targets to process", "count", len(targets))

	maxBodySize, err := parseByteSize(viper.GetString("fetch.max_body_size"))
	if err != nil {
		logger.Error("invalid max-body-size", "value", viper.GetString("fetch.max_body_size"), "error", err)
		return err
	}

	fetchMode := viper.GetString("fetch.mode")
	opts := []menuscrape.Option{
		menuscrape.WithFetchMode(fetchMode),
		menuscrape.WithTimeout(viper.GetDuration("fetch.timeout")),
		menuscrape.WithMaxBodySize(maxBodySize),
		menuscrape.WithDelay(viper.GetDuration("crawl.delay")),
	}
	if ua := viper.GetString("fetch.user_agent"); ua != "" {
		opts = append(opts, menuscrape.WithUserAgent(ua))
	}
	if maxTargets, _ := cmd.Flags().GetInt("max-targets"); maxTargets > 0 {
		opts = append(opts, menuscrape.WithMaxTargets(maxTargets))
	}
	popts, err := pipelineOptions()
	if err != nil {
		logError("%v", err)
		return err
	}
	if len(popts) > 0 {
		opts = append(opts, menuscrape.WithPipeline(extractor.NewPipeline(popts...)))
	}

	sink, err := openSink(ctx, cmd)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	if sink != nil {
		defer func() { _ = sink.Close() }()
		opts = append(opts, menuscrape.WithSink(sink))
	}

	s, err := menuscrape.New(opts...)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	outPath, _ := cmd.Flags().GetString("output")
	formatStr, _ := cmd.Flags().GetString("format")
	w, closeFn, err := openWriter(outPath, formatStr, true)
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}

	includeTrace, _ := cmd.Flags().GetBool("trace")
	concurrency := viper.GetInt("crawl.concurrency")

	logger.Info("starting scrape",
		"targets", len(targets),
		"fetch_mode", s.FetchMode(),
		"concurrency", concurrency,
		"persist", sink != nil)

	count, errorCount := 0, 0
	for res := range s.ScrapeMany(ctx, targets, concurrency) {
		if res.Error != nil {
			errorCount++
		} else {
			count++
		}
		if !includeTrace {
			res.Trace = nil
		}
		if err := w.Write(res); err != nil {
			logger.Error("failed to write output", "error", err)
			cancel()
			_ = closeFn()
			return err
		}
	}
	if err := closeFn(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("scrape complete", "scraped", count, "errors", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d of %d targets failed", errorCount, count+errorCount)
	}
	return nil
}

// buildTargets reads the targets file, or builds a single target from the
// naver-id, url and store-id flags.
func buildTargets(cmd *cobra.Command) ([]menuscrape.Target, error) {
	path, _ := cmd.Flags().GetString("targets")
	naverID, _ := cmd.Flags().GetString("naver-id")
	rawURL, _ := cmd.Flags().GetString("url")
	storeID, _ := cmd.Flags().GetInt64("store-id")

	if path != "" {
		if naverID != "" || rawURL != "" {
			return nil, errors.New("--targets cannot be combined with --naver-id or --url")
		}
		targets, err := menuscrape.LoadTargets(path)
		if err != nil {
			return nil, fmt.Errorf("load targets: %w", err)
		}
		return targets, nil
	}

	if naverID == "" && rawURL == "" {
		return nil, nil
	}
	t := menuscrape.Target{StoreID: storeID, NaverID: strings.TrimSpace(naverID), URL: strings.TrimSpace(rawURL)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []menuscrape.Target{t}, nil
}

// openSink returns the configured result store, or nil when results are
// not persisted.
func openSink(ctx context.Context, cmd *cobra.Command) (storage.Sink, error) {
	persist, _ := cmd.Flags().GetBool("persist")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	switch {
	case dryRun:
		logger.Info("dry run: results are kept in memory")
		return storage.NewMemorySink(), nil
	case persist:
		cfg := databaseConfig()
		logger.Debug("connecting to database", "host", cfg.Host, "database", cfg.Database)
		pg, err := storage.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, nil
	}
}

// parseByteSize parses sizes like "5MB". Empty and "0" mean unlimited.
func parseByteSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
