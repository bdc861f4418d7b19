// Package sheets downloads shared spreadsheets, first through the public CSV
// export and then through the Sheets API with bounded retries.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 3
	defaultQuotaWait   = 65 * time.Second
	defaultRetryWait   = 5 * time.Second
)

// Downloader fetches the first worksheet of a document as a Grid.
type Downloader struct {
	exporter domain.CSVExporter
	api      domain.SpreadsheetAPI
	logger   *slog.Logger

	maxAttempts int
	quotaWait   time.Duration
	retryWait   time.Duration
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithMaxAttempts sets the number of API attempts (default: 3).
func WithMaxAttempts(n int) Option {
	return func(d *Downloader) { d.maxAttempts = n }
}

// WithBackoff sets the wait after a rate-limit error (default: 65s) and after
// any other API error (default: 5s).
func WithBackoff(quota, retry time.Duration) Option {
	return func(d *Downloader) {
		d.quotaWait = quota
		d.retryWait = retry
	}
}

// WithRateLimit paces API attempts. Export requests are not paced.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(d *Downloader) { d.limiter = rate.NewLimiter(limit, burst) }
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Downloader) { d.sleep = fn }
}

// NewDownloader creates a Downloader. Either collaborator may be nil, in
// which case that path is skipped.
func NewDownloader(exporter domain.CSVExporter, api domain.SpreadsheetAPI, logger *slog.Logger, opts ...Option) *Downloader {
	d := &Downloader{
		exporter:    exporter,
		api:         api,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		quotaWait:   defaultQuotaWait,
		retryWait:   defaultRetryWait,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxAttempts < 1 {
		d.maxAttempts = 1
	}
	return d
}

// Download returns the grid of the first worksheet of documentID. The export
// error is only reported when the API path fails too.
func (d *Downloader) Download(ctx context.Context, documentID string) (*domain.Grid, error) {
	var exportErr error
	if d.exporter != nil {
		grid, err := d.export(ctx, documentID)
		if err == nil {
			d.logger.Info("sheet exported",
				"document_id", documentID,
				"rows", len(grid.Rows),
				"columns", grid.Width(),
			)
			return grid, nil
		}
		exportErr = fmt.Errorf("csv export: %w", err)
		d.logger.Debug("csv export failed, trying sheets api",
			"document_id", documentID,
			"error", err,
		)
	}

	if d.api == nil {
		if exportErr == nil {
			exportErr = errors.New("no download path configured")
		}
		return nil, fmt.Errorf("download %s: %w", documentID, exportErr)
	}

	grid, err := d.fetchFromAPI(ctx, documentID)
	if err != nil {
		return nil, errors.Join(err, exportErr)
	}

	d.logger.Info("sheet downloaded via api",
		"document_id", documentID,
		"rows", len(grid.Rows),
		"columns", grid.Width(),
	)
	return grid, nil
}

func (d *Downloader) export(ctx context.Context, documentID string) (*domain.Grid, error) {
	content, err := d.exporter.FetchCSV(ctx, ExportURL(documentID))
	if err != nil {
		return nil, err
	}
	return domain.ParseCSV(content)
}

func (d *Downloader) fetchFromAPI(ctx context.Context, documentID string) (*domain.Grid, error) {
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for rate limiter: %w", err)
			}
		}

		grid, err := d.readFirstWorksheet(ctx, documentID)
		if err == nil {
			return grid, nil
		}
		err = classify(err)
		lastErr = err

		var wait time.Duration
		switch {
		case errors.Is(err, domain.ErrUnsupportedDocument):
			d.logger.Error("document not supported by sheets api",
				"document_id", documentID,
				"error", err,
			)
			return nil, err
		case errors.Is(err, domain.ErrRateLimited):
			wait = d.quotaWait
			d.logger.Warn("sheets api quota exceeded",
				"document_id", documentID,
				"attempt", attempt,
				"max_attempts", d.maxAttempts,
				"error", err,
			)
		default:
			wait = d.retryWait
			d.logger.Warn("sheets api download failed",
				"document_id", documentID,
				"attempt", attempt,
				"max_attempts", d.maxAttempts,
				"error", err,
			)
		}

		if attempt == d.maxAttempts {
			break
		}
		if err := d.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("download %s interrupted: %w", documentID, err)
		}
	}

	d.logger.Error("sheets api retries exhausted",
		"document_id", documentID,
		"attempts", d.maxAttempts,
		"error", lastErr,
	)
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrDownloadExhausted, documentID, d.maxAttempts, lastErr)
}

func (d *Downloader) readFirstWorksheet(ctx context.Context, documentID string) (*domain.Grid, error) {
	wb, err := d.api.OpenByKey(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ws, err := wb.FirstWorksheet(ctx)
	if err != nil {
		return nil, err
	}
	values, err := ws.AllValues(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GridFromValues(values), nil
}

// classify maps an API error onto the download error taxonomy. Adapters that
// do not tag their errors are matched on the service's message text.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrUnsupportedDocument),
		errors.Is(err, domain.ErrTransientDownload):
		return err
	case strings.Contains(err.Error(), quotaExceededMessage):
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	case strings.Contains(err.Error(), unsupportedMessage):
		return fmt.Errorf("%w: %w", domain.ErrUnsupportedDocument, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTransientDownload, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
