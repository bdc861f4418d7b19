package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/robfig/cron/v3"
)

// Scheduler triggers runs on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	query  domain.SearchQuery
	logger *slog.Logger
	ctx    context.Context
}

// New creates a Scheduler that runs q on spec, a standard cron expression or
// descriptor such as "@hourly".
func New(runner *Runner, spec string, q domain.SearchQuery, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		query:  q,
		logger: logger,
		ctx:    context.Background(),
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule. Runs use ctx and stop when it is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "next_run", s.cron.Entries()[0].Next)
}

// Stop stops the schedule and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopped")
	return s.cron.Stop()
}

func (s *Scheduler) tick() {
	s.logger.Info("scheduled run starting", "query", s.query.Query)
	if _, err := s.runner.Run(s.ctx, s.query); errors.Is(err, ErrRunInProgress) {
		s.logger.Warn("scheduled run skipped, another run is in progress")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
