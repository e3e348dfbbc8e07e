// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// prepare points goose at the embedded migrations of the dialect and
// returns the directory to run.
func prepare(dialect Dialect) (string, error) {
	goose.SetBaseFS(embedMigrations)

	switch dialect {
	case DialectSQLite:
		if err := goose.SetDialect("sqlite3"); err != nil {
			return "", err
		}
		return "migrations/sqlite", nil
	case DialectPostgres:
		if err := goose.SetDialect("postgres"); err != nil {
			return "", err
		}
		return "migrations/postgres", nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sql.DB, dialect Dialect) error {
	dir, err := prepare(dialect)
	if err != nil {
		return err
	}
	return goose.Reset(db, dir)
}

// Version returns the current migration version.
func Version(db *sql.DB, dialect Dialect) (int64, error) {
	if _, err := prepare(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
