package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schema embed.FS

// ErrDirtySchema means a migration failed halfway and needs manual repair.
var ErrDirtySchema = errors.New("schema is dirty")

// openMigrator binds the embedded schema to the database file at path. The
// migrator owns its own connection: closing it must not close the pool the
// repository serves requests from.
func openMigrator(path string) (*migrate.Migrate, error) {
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	target, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		src.Close()
		return nil, fmt.Errorf("bind sqlite: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		target.Close()
		src.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations brings the database at dbPath up to the latest schema.
func RunMigrations(dbPath string) error {
	m, err := openMigrator(dbPath)
	if err != nil {
		return err
	}
	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied schema version of the database at
// dbPath, zero when nothing was applied yet.
func SchemaVersion(dbPath string) (uint, error) {
	m, err := openMigrator(dbPath)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("version %d: %w", v, ErrDirtySchema)
	}
	return v, nil
}
