package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbfs "github.com/WullieT22/Invoice-to-PO/db"
)

// Migrate applies the embedded migrations for the database dialect.
func Migrate(d *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		drv database.Driver
		err error
	)
	switch d.dialect {
	case dialect.Postgres:
		drv, err = pgxmigrate.WithInstance(d.SQL, &pgxmigrate.Config{})
	case dialect.SQLite:
		drv, err = sqlitemigrate.WithInstance(d.SQL, &sqlitemigrate.Config{})
	default:
		return fmt.Errorf("no migrations for dialect %q", d.dialect)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(dbfs.Migrations, migrationDir(d.dialect))
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, d.dialect, drv)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	m.Log = migrationLogger{logger: logger}

	// m.Close would close the shared *sql.DB, so it is left to DB.Close.
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations.up_to_date", "dialect", d.dialect)
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate version: %w", err)
	}
	logger.Info("migrations.applied", "dialect", d.dialect, "version", version, "dirty", dirty)
	return nil
}

func migrationDir(d string) string {
	if d == dialect.SQLite {
		return "migrations/sqlite"
	}
	return "migrations/" + d
}

type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Verbose() bool {
	return false
}
