// Package scheduler runs ingestion (and optionally normalization) on a cron
// schedule or on demand, one run at a time.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/blackmichael/disc-sheets/internal/headers"
	"github.com/blackmichael/disc-sheets/internal/ingest"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still going.
var ErrRunInProgress = errors.New("run already in progress")

// Ingester runs the ingestion pipeline.
type Ingester interface {
	Run(ctx context.Context, q domain.SearchQuery) (*ingest.Result, error)
}

// Normalizer runs the header pass.
type Normalizer interface {
	Run(ctx context.Context) (*headers.Report, error)
}

// NormalizeSummary is the serializable outline of a headers.Report.
type NormalizeSummary struct {
	Sheets   int `json:"sheets"`
	Found    int `json:"found"`
	Mapped   int `json:"mapped"`
	Corrupt  int `json:"corrupt"`
	Exported int `json:"exported"`
}

// Report describes a finished run.
type Report struct {
	Query      domain.SearchQuery `json:"query"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Ingest     *ingest.Summary    `json:"ingest,omitempty"`
	Normalize  *NormalizeSummary  `json:"normalize,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Runner serializes runs within the process. Separate processes sharing a
// cache are not coordinated.
type Runner struct {
	ingester   Ingester
	normalizer Normalizer
	logger     *slog.Logger

	running sync.Mutex

	mu   sync.RWMutex
	last *Report
}

// NewRunner creates a Runner. normalizer may be nil to skip the header pass.
func NewRunner(ingester Ingester, normalizer Normalizer, logger *slog.Logger) *Runner {
	return &Runner{
		ingester:   ingester,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Run performs a run synchronously. It returns ErrRunInProgress without
// waiting when another run holds the runner.
func (r *Runner) Run(ctx context.Context, q domain.SearchQuery) (*Report, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()
	return r.run(ctx, q)
}

// Start performs a run in the background. It returns ErrRunInProgress when
// another run holds the runner.
func (r *Runner) Start(ctx context.Context, q domain.SearchQuery) error {
	if !r.running.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer r.running.Unlock()
		r.run(ctx, q)
	}()
	return nil
}

// Last returns the report of the most recent finished run.
func (r *Runner) Last() (*Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.last != nil
}

func (r *Runner) run(ctx context.Context, q domain.SearchQuery) (*Report, error) {
	report := &Report{Query: q, StartedAt: time.Now().UTC()}
	err := r.execute(ctx, q, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		r.logger.Error("run failed", "query", q.Query, "error", err)
	}

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	return report, err
}

func (r *Runner) execute(ctx context.Context, q domain.SearchQuery, report *Report) error {
	res, err := r.ingester.Run(ctx, q)
	if err != nil {
		return err
	}
	s := res.Summary()
	report.Ingest = &s

	if r.normalizer == nil {
		return nil
	}
	nr, err := r.normalizer.Run(ctx)
	if err != nil {
		return err
	}
	report.Normalize = &NormalizeSummary{
		Sheets:   len(nr.Results),
		Found:    nr.Found,
		Mapped:   nr.Mapped,
		Corrupt:  nr.Corrupt,
		Exported: nr.Exported,
	}
	return nil
}
