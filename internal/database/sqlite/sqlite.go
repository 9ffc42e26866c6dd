// Package sqlite is the default catalog backend: a single SQLite file next to
// the library, opened through mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/sqlstore"
	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions enables WAL so the pool can read while a scan writes, and turns on
// foreign keys for cascading deletes.
const dsnOptions = "_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"

func init() {
	database.Register(func(ctx context.Context, cfg *config.DatabaseConfig) (database.Catalog, error) {
		return Open(ctx, PathFromURL(cfg.URL))
	}, "sqlite", "sqlite3", "file")
}

// Dialect returns the SQLite dialect.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:       "sqlite",
		Conflict:   sqlstore.OnConflictDoNothing,
		Returning:  false,
		Embeddings: sqlstore.BlobCodec{},
		Migrations: sqlstore.Migrations("sqlite"),
	}
}

// PathFromURL strips the scheme from sqlite://path URLs.
func PathFromURL(url string) string {
	if _, rest, ok := strings.Cut(url, "://"); ok {
		return rest
	}
	return url
}

// Open opens (creating if needed) the catalog file at path and applies migrations.
// Use ":memory:" for a throwaway catalog.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = "file:" + path
	}
	if strings.Contains(dsn, "?") {
		dsn += "&" + dsnOptions
	} else {
		dsn += "?" + dsnOptions
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pool workers; WAL still serves readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := sqlstore.New(db, Dialect())
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}
