// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/vinovest/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Dialect identifies the SQL flavour behind a DSN.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "./data/schoolhub.db"

// DetectDialect picks the dialect from the DSN. URLs with a postgres scheme
// go to pgx, everything else is treated as an SQLite path.
func DetectDialect(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open creates a connection pool for the DSN and runs pending migrations.
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	conn, err := Connect(dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(conn.DB, DetectDialect(dsn)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Connect creates a connection pool for the DSN without touching the schema.
func Connect(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	if DetectDialect(dsn) == DialectPostgres {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	inMemory := isInMemory(dsn)

	// Create directory for file-based databases
	if !inMemory {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	dsn = addDefaultParams(dsn)

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if inMemory {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
	}
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if err := configureSQLite(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func isInMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// addDefaultParams adds recommended SQLite parameters if not already present.
func addDefaultParams(dsn string) string {
	defaults := []struct{ key, param string }{
		{"_txlock", "_txlock=immediate"},
		{"busy_timeout", "_pragma=busy_timeout(5000)"},
		{"foreign_keys", "_pragma=foreign_keys(1)"},
		{"_time_format", "_time_format=sqlite"},
	}

	for _, d := range defaults {
		if !strings.Contains(dsn, d.key) {
			separator := "?"
			if strings.Contains(dsn, "?") {
				separator = "&"
			}
			dsn += separator + d.param
		}
	}

	return dsn
}

// configureSQLite sets PRAGMAs for optimal performance.
func configureSQLite(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 134217728",
		"PRAGMA journal_size_limit = 27103364",
		"PRAGMA cache_size = 2000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	return nil
}
