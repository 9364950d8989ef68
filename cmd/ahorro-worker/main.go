package main

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ahorro/internal/amqp"
	"ahorro/internal/cli"
	"ahorro/internal/log"
	"ahorro/internal/sheets"
	gsheet "ahorro/internal/sheets/google"
	mem "ahorro/internal/sheets/memory"
	"ahorro/internal/worker"
)

const statusInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting ahorro-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	var mirror sheets.HistoryMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = mem.New()
		logger.Info("Google Sheets disabled - mirroring history in memory")
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	history := worker.NewHistoryWorker(mirror)
	var handled atomic.Int64
	handle := func(ctx context.Context, e *amqp.LedgerEvent) error {
		if err := history.HandleLedgerEvent(ctx, e); err != nil {
			return err
		}
		handled.Add(1)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqp.RunConsumer(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, handle)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("Worker status", "events_mirrored", handled.Load())
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "events_mirrored", handled.Load())
}
