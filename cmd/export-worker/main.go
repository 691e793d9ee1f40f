package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bizdash/internal/amqp"
	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/config"
	"bizdash/internal/dashboard"
	"bizdash/internal/export"
	"bizdash/internal/log"
	"bizdash/internal/records/google"
	"bizdash/internal/storage"
	"bizdash/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	// abandonedAfter is how long a job may stay queued before the startup
	// check gives up on it.
	abandonedAfter = 15 * time.Minute
)

func main() {
	cfg, logger := cli.MustLoadConfig((*config.Config).ValidateExport)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting export-worker", "queue", cfg.AMQPQueue, log.FieldOperation, log.OpStartup)

	ctx := context.Background()

	tables, err := backend.NewFactory(logger).Tables(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	svc, err := google.NewService(ctx, backend.Credentials(cfg))
	if err != nil {
		logger.Error("Failed to initialize Google Sheets service", log.FieldError, err)
		os.Exit(1)
	}
	writer, err := export.NewSheetsWriter(svc, cfg.ExportTarget(), logger)
	if err != nil {
		logger.Error("Failed to initialize spreadsheet writer", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	pages := dashboard.NewRegistry(dashboard.NewDatasets(tables.Client, logger), cfg.Language(), logger)
	w := worker.NewExportWorker(pages, writer, repo, logger)

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) error {
		return errors.Join(client.Close(), repo.Close(), backend.Close(tables.Cleanup))
	})

	logger.Info("Performing startup export check...")
	if _, err := w.StartupCheck(runCtx, abandonedAfter); err != nil {
		logger.Error("Failed startup export check", log.FieldError, err)
	}

	if err := client.ConsumeExports(runCtx, w.HandleExport); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}
	<-done
	logger.Info("Export worker stopped")
}
