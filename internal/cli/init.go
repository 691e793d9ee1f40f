// Package cli holds the start-up steps shared by cmd/bizdash, cmd/export-worker
// and cmd/bizctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizdash/internal/config"
	"bizdash/internal/log"
)

// SetupLogger builds the process logger at the configured level and installs
// it as the slog default.
func SetupLogger(level, format string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Output = out
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads and validates the configuration. extra runs after
// Validate for binaries with additional requirements.
func LoadConfig(extra ...func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, check := range extra {
		if err := check(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig that logs and exits on failure.
func MustLoadConfig(extra ...func(*config.Config) error) (*config.Config, *log.Logger) {
	cfg, err := LoadConfig(extra...)
	if err != nil {
		boot := SetupLogger("info", "text", os.Stderr)
		boot.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg.LogLevel, cfg.LogFormat, nil)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once after the signal with a context bounded by timeout; done is
// closed when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		case <-ctx.Done():
		}
		cancel()

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Error("Shutdown cleanup failed", log.FieldError, err)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// Fatal prints err to stderr and exits non-zero. Used by the cobra commands.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
