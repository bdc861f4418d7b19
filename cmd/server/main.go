package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/disc-sheets/internal/app"
	"github.com/blackmichael/disc-sheets/internal/config"
	"github.com/blackmichael/disc-sheets/internal/httpserver"
	"github.com/blackmichael/disc-sheets/internal/logging"
	"github.com/blackmichael/disc-sheets/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", envOrDefault("CONFIG_FILE", "config.toml"), "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Format: cfg.Logging.Format,
		Level:  level,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closeLog()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var normalizer scheduler.Normalizer
	if cfg.Schedule.Normalize {
		normalizer = a.Normalizer
	}
	runner := scheduler.NewRunner(a.Pipeline, normalizer, logger)
	query := app.DefaultQuery(cfg)

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = scheduler.New(runner, cfg.Schedule.Cron, query, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	if cfg.Schedule.RunAtStartup {
		if err := runner.Start(ctx, query); err != nil {
			logger.Warn("startup run not started", "error", err)
		}
	}

	// Start the HTTP server
	server := httpserver.NewServer(ctx, cfg.Server.Port, runner, query, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Server.Port,
		"cache", cfg.Cache.Backend,
		"subreddit", cfg.Reddit.Subreddit,
		"schedule", cfg.Schedule.Cron,
		"scheduled", cfg.Schedule.Enabled,
	)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("scheduled run did not finish before shutdown")
		}
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
