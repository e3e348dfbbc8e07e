// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/schoolhub/internal/database"
	"github.com/urfave/cli/v3"
)

type migrateFunc func(db *sql.DB, dialect database.Dialect) error

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{Name: "up", Usage: "Apply all pending migrations", Action: withDB(database.RunMigrations)},
			{Name: "down", Usage: "Roll back the latest migration", Action: withDB(database.MigrateDown)},
			{Name: "reset", Usage: "Roll back all migrations", Action: withDB(database.MigrateReset)},
			{Name: "status", Usage: "Print the current schema version", Action: withDB(printVersion)},
		},
	}
}

func withDB(fn migrateFunc) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		dsn := cmd.String("database-dsn")
		db, err := database.Connect(dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("failed to close database", "error", closeErr)
			}
		}()

		return fn(db.DB, database.DetectDialect(dsn))
	}
}

func printVersion(db *sql.DB, dialect database.Dialect) error {
	version, err := database.Version(db, dialect)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (%s)\n", version, dialect)
	return nil
}
