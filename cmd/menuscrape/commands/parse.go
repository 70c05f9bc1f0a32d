package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/extractor"
	"github.com/jmylchreest/menuscrape/pkg/menu"
	"github.com/jmylchreest/menuscrape/pkg/menuscrape"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Extract menus from a saved page",
	Long: `Run the extraction pipeline over an HTML file without fetching.

Use "-" to read the page from stdin. The store id only seeds the
source_id of each record.

Examples:
  menuscrape parse page.html --store-id 1234567
  curl -s "$URL" | menuscrape parse - --store-id 1234567 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	flags := parseCmd.Flags()
	flags.String("store-id", "", "store id used in source ids (required)")
	flags.String("content-type", "", "content type of the page, for charset detection (default: sniffed)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, csv")
	flags.Bool("trace", false, "include the strategy trace in the output")

	_ = parseCmd.MarkFlagRequired("store-id")
}

func runParse(cmd *cobra.Command, args []string) error {
	storeID, _ := cmd.Flags().GetString("store-id")
	contentType, _ := cmd.Flags().GetString("content-type")
	includeTrace, _ := cmd.Flags().GetBool("trace")

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			logError("%v", err)
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	popts, err := pipelineOptions()
	if err != nil {
		logError("%v", err)
		return err
	}
	p := extractor.NewPipeline(popts...)
	start := time.Now()
	ext, err := p.ExtractReader(in, contentType, storeID)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return err
	}
	logger.Info("extracted",
		"records", len(ext.Records),
		"strategy", ext.Strategy,
		"duration", time.Since(start).Round(time.Millisecond))

	records := ext.Records
	if records == nil {
		records = []menu.Record{}
	}
	res := menuscrape.Result{
		NaverStoreID: storeID,
		MenuCount:    len(records),
		Menus:        records,
		Strategy:     ext.Strategy,
		Stats:        menu.Summarize(records),
		ScrapedAt:    time.Now(),
	}
	if includeTrace {
		res.Trace = ext.Trace
	}

	outPath, _ := cmd.Flags().GetString("output")
	formatStr, _ := cmd.Flags().GetString("format")
	w, closeFn, err := openWriter(outPath, formatStr, true)
	if err != nil {
		return err
	}
	if err := w.Write(res); err != nil {
		_ = closeFn()
		return fmt.Errorf("write output: %w", err)
	}
	return closeFn()
}

// pipelineOptions applies selector overrides from the config file's
// "selectors" section.
func pipelineOptions() ([]extractor.Option, error) {
	if !viper.IsSet("selectors") {
		return nil, nil
	}
	var sel extractor.Selectors
	if err := viper.UnmarshalKey("selectors", &sel); err != nil {
		return nil, fmt.Errorf("selectors config: %w", err)
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("selectors config: %w", err)
	}
	logger.Debug("using selector overrides", "selectors", sel)
	return []extractor.Option{extractor.WithSelectors(sel)}, nil
}
