package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/disc-sheets/internal/app"
	"github.com/blackmichael/disc-sheets/internal/cache"
	"github.com/blackmichael/disc-sheets/internal/config"
	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/blackmichael/disc-sheets/internal/headers"
	"github.com/blackmichael/disc-sheets/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		query       string
		sort        string
		timeWindow  string
		limit       int
		normalize   bool
		skipIngest  bool
		headerStats bool
		exportDir   string
	)

	flag.StringVar(&configPath, "config", envOrDefault("CONFIG_FILE", "config.toml"), "Path to the TOML config file")
	flag.StringVar(&query, "query", "", "Search text (default from config)")
	flag.StringVar(&sort, "sort", "", "Sort order: relevance, new, hot, top, comments (default from config)")
	flag.StringVar(&timeWindow, "time", "", "Time window: hour, day, week, month, year, all (default from config)")
	flag.IntVar(&limit, "limit", -1, "Maximum number of search results, 0 for no limit (default from config)")
	flag.BoolVar(&normalize, "normalize", false, "Run header normalization after ingestion")
	flag.BoolVar(&skipIngest, "skip-ingest", false, "Skip the forum search and downloads")
	flag.BoolVar(&headerStats, "header-stats", false, "Print header label frequencies of the cached sheets")
	flag.StringVar(&exportDir, "export-dir", "", "Write normalized sheets as CSV into this directory")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if exportDir != "" {
		cfg.Normalize.ExportDir = exportDir
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Format: cfg.Logging.Format,
		Level:  level,
		File:   cfg.Logging.File,
		Stdout: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if !skipIngest {
		q := app.DefaultQuery(cfg)
		if query != "" {
			q.Query = query
		}
		if sort != "" {
			q.Sort = sort
		}
		if timeWindow != "" {
			q.TimeWindow = timeWindow
		}
		if limit >= 0 {
			q.Limit = limit
		}

		res, err := a.Pipeline.Run(ctx, q)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		if err := enc.Encode(res.Summary()); err != nil {
			return err
		}
	}

	if normalize {
		report, err := a.Normalizer.Run(ctx)
		if err != nil {
			return fmt.Errorf("normalize: %w", err)
		}
		fmt.Printf("normalized %d sheets: %d headers found, %d mapped, %d corrupt, %d exported\n",
			len(report.Results), report.Found, report.Mapped, report.Corrupt, report.Exported)
	}

	if headerStats {
		return printHeaderStats(ctx, a.Cache)
	}
	return nil
}

func printHeaderStats(ctx context.Context, c *cache.Cache) error {
	posts, err := cache.ScanHashValues[domain.SheetPost](ctx, c, cache.SheetsHash, cache.SheetFieldPattern)
	if err != nil && len(posts) == 0 {
		return fmt.Errorf("scan sheets: %w", err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	grids := make([]*domain.Grid, 0, len(posts))
	for i := range posts {
		g, err := posts[i].Grid()
		if err != nil || g == nil {
			continue
		}
		r := headers.Detect(g, &posts[i])
		headers.Promote(r)
		grids = append(grids, r.Grid)
	}

	for _, lc := range headers.CountLabels(grids) {
		fmt.Printf("%6d  %s\n", lc.Count, lc.Label)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
