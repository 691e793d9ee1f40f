package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bizdash/internal/amqp"
	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/config"
	"bizdash/internal/dashboard"
	apphttp "bizdash/internal/http"
	"bizdash/internal/log"
	"bizdash/internal/services"
	"bizdash/internal/session"
	"bizdash/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger.Info("Starting bizdash",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"session_backend", cfg.SessionBackend,
		log.FieldOperation, log.OpStartup)

	ctx := context.Background()
	factory := backend.NewFactory(logger)

	tables, err := factory.Tables(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	sessions, err := factory.Sessions(cfg)
	if err != nil {
		logger.Error("Failed to initialize session backend", log.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}

	datasets := dashboard.NewDatasets(tables.Client, logger)
	pages := dashboard.NewRegistry(datasets, cfg.Language(), logger).WithViewTTL(cfg.CacheTTL)
	exports, sessionsCleanup := newExportService(cfg, sessions, logger)

	deps := apphttp.Deps{
		Pages:    pages,
		Overview: datasets.Overview(),
		Records:  services.NewRecordService(tables.Client, datasets, logger),
		Projects: datasets.Projects,
		Exports:  exports,
		Sessions: session.NewManager(sessions.Store, cfg.SessionTTL, logger),
		Auth:     session.NewAuthenticator(tables.Client),
	}
	if sessions.Repo != nil {
		deps.Ready = sessions.Repo.Ping
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		CookieSecure:    cfg.CookieSecure,
		CleanupInterval: cfg.CleanupInterval,
		LoginRateLimit:  cfg.LoginRateLimit,
	}, logger)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) error {
		return errors.Join(
			srv.Shutdown(ctx),
			exports.Close(),
			backend.Close(tables.Cleanup, sessionsCleanup),
		)
	})

	go warmUp(runCtx, pages, logger)

	if err := srv.Start(runCtx, shutdownTimeout); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}

// newExportService enables spreadsheet export when a broker is configured.
// The export log shares the session database when sessions live in SQLite;
// the returned cleanup is what is left for the session backend to close.
func newExportService(cfg *config.Config, sessions *backend.Sessions, logger *log.Logger) (*services.ExportService, backend.CleanupFunc) {
	if cfg.AMQPURL == "" {
		logger.Info("Spreadsheet export disabled - no AMQP_URL provided")
		return services.NewExportService(nil, nil, "", logger), sessions.Cleanup
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to connect to message broker, spreadsheet export disabled", log.FieldError, err)
		return services.NewExportService(nil, nil, "", logger), sessions.Cleanup
	}

	repo, cleanup := sessions.Repo, backend.CleanupFunc(nil)
	if repo == nil {
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open export log, spreadsheet export disabled", log.FieldError, err, "path", cfg.SQLiteDBPath)
			_ = client.Close()
			return services.NewExportService(nil, nil, "", logger), sessions.Cleanup
		}
		cleanup = sessions.Cleanup
	}
	logger.Info("Spreadsheet export enabled", "queue", cfg.AMQPQueue, "target", cfg.ExportTarget())
	return services.NewExportService(repo, client, cfg.ExportTarget(), logger), cleanup
}

// warmUp loads every page's dataset concurrently so the first visitor does
// not pay for the fetch. Failures are logged; pages retry on demand.
func warmUp(ctx context.Context, pages *dashboard.Registry, logger *log.Logger) {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pages.All() {
		g.Go(func() error {
			if err := p.Refresh(ctx); err != nil {
				logger.Warn("Dataset warm-up failed", log.FieldPage, p.Meta().Slug, log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("Dataset warm-up finished", log.FieldDuration, time.Since(start).Milliseconds())
}
