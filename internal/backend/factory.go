// Package backend builds the record table client and the session store
// selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"bizdash/internal/adapters"
	"bizdash/internal/config"
	"bizdash/internal/log"
	"bizdash/internal/records"
	"bizdash/internal/records/google"
	"bizdash/internal/records/memory"
	"bizdash/internal/records/remote"
	"bizdash/internal/session"
	"bizdash/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Tables is a record table client plus its cleanup.
type Tables struct {
	Client  records.TableClient
	Cleanup CleanupFunc
}

// Sessions is a session store plus the SQLite repository behind it, if any.
type Sessions struct {
	Store session.Store
	// Repo is nil for the memory backend.
	Repo    *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Tables creates the table client for cfg.DataBackend.
func (f *Factory) Tables(ctx context.Context, cfg *config.Config) (*Tables, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		store, err := memory.NewFromFiles(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed data: %w", err)
		}
		f.logger.Info("Initialized memory backend", "data_directory", cfg.DataDir)
		return &Tables{Client: store}, nil

	case config.BackendRemote:
		client, err := remote.New(remote.Config{
			BaseURL:   cfg.TableAPIURL,
			AppID:     cfg.TableAppID,
			AccessKey: cfg.TableAPIKey,
			Locale:    cfg.TableAPILocale,
			Timeout:   cfg.TableAPITimeout,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize table API client: %w", err)
		}
		f.logger.Info("Initialized remote table backend", "base_url", cfg.TableAPIURL)
		return &Tables{Client: client}, nil

	case config.BackendSheets:
		svc, err := google.NewService(ctx, Credentials(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		client, err := google.New(svc, cfg.GoogleSpreadsheetID, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets backend: %w", err)
		}
		f.logger.Info("Initialized Google Sheets backend")
		return &Tables{Client: client}, nil
	}
	return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
}

// Sessions creates the session store for cfg.SessionBackend.
func (f *Factory) Sessions(cfg *config.Config) (*Sessions, error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		f.logger.Info("Initialized memory session store")
		return &Sessions{Store: session.NewMemoryStore()}, nil

	case config.SessionSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite session store", "db_path", cfg.SQLiteDBPath)
		return &Sessions{Store: adapters.NewSessionStore(repo), Repo: repo, Cleanup: repo.Close}, nil
	}
	return nil, fmt.Errorf("unsupported session backend: %s", cfg.SessionBackend)
}

// Credentials maps the service account settings.
func Credentials(cfg *config.Config) google.Credentials {
	return google.Credentials{JSON: cfg.GoogleServiceAccountJSON, File: cfg.GoogleServiceAccountFile}
}

// Close runs every non-nil cleanup and joins their errors.
func Close(fns ...CleanupFunc) error {
	var errs []error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
