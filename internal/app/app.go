// Package app wires configuration into the running components shared by the
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackmichael/disc-sheets/internal/cache"
	"github.com/blackmichael/disc-sheets/internal/config"
	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/blackmichael/disc-sheets/internal/headers"
	"github.com/blackmichael/disc-sheets/internal/ingest"
	"github.com/blackmichael/disc-sheets/internal/reddit"
	"github.com/blackmichael/disc-sheets/internal/redisstore"
	"github.com/blackmichael/disc-sheets/internal/sheets"
	"github.com/blackmichael/disc-sheets/internal/sqlstore"
)

// App holds the wired components.
type App struct {
	Cache      *cache.Cache
	Pipeline   *ingest.Pipeline
	Normalizer *headers.Normalizer
}

// Build opens the configured cache store and constructs the pipeline and
// normalizer around it. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to cache", "backend", cfg.Cache.Backend)
	c := cache.New(store, logger)

	loc, err := cfg.Location()
	if err != nil {
		c.Close()
		return nil, err
	}

	if !cfg.HasRedditCredentials() {
		logger.Warn("reddit credentials are incomplete, searches will fail to authenticate")
	}
	forum := reddit.NewClient(cfg.Reddit.Subreddit, reddit.Credentials{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		AppName:      cfg.Reddit.AppName,
	}, reddit.WithRateLimit(perMinute(cfg.Reddit.RequestsPerMinute), 1))

	var api domain.SpreadsheetAPI
	if !cfg.Sheets.DisableAPI {
		g, err := sheets.NewGoogleAPI(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			logger.Warn("spreadsheet API unavailable, using CSV export only", "error", err)
		} else {
			api = g
		}
	}
	downloader := sheets.NewDownloader(
		sheets.NewHTTPExporter(cfg.Sheets.ExportTimeout),
		api,
		logger,
		sheets.WithMaxAttempts(cfg.Sheets.MaxAttempts),
		sheets.WithBackoff(cfg.Sheets.QuotaWait, cfg.Sheets.RetryWait),
		sheets.WithRateLimit(perMinute(cfg.Sheets.RequestsPerMinute), 1),
	)

	return &App{
		Cache:      c,
		Pipeline:   ingest.New(forum, c, downloader, logger, ingest.WithLocation(loc)),
		Normalizer: headers.NewNormalizer(c, nil, cfg.Normalize.ExportDir, logger),
	}, nil
}

// Close releases the cache store.
func (a *App) Close() error {
	return a.Cache.Close()
}

// OpenStore connects the configured cache backend.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (domain.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		s, err := redisstore.Open(ctx, redisstore.Options{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return s, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s cache: %w", cfg.Backend, err)
		}
		return s, nil
	default:
		return nil, errors.New("unknown cache backend " + cfg.Backend)
	}
}

// DefaultQuery is the search run by the scheduler and by triggers that do not
// override it.
func DefaultQuery(cfg *config.Config) domain.SearchQuery {
	return domain.SearchQuery{
		Query:      cfg.Search.Query,
		Sort:       cfg.Search.Sort,
		TimeWindow: cfg.Search.TimeWindow,
		Limit:      cfg.Search.Limit,
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}
