// Package localdb opens the client's SQLite database and brings its schema
// up to date.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/migrations"
	"github.com/kholikovA/ielts-wiz-sub001/internal/filex"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// RunMigrations applies the embedded migrations to db. Running it again on an
// up-to-date database is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// InitDatabase opens the SQLite database at dsn and migrates it. The
// directory of a file database is created when missing. The pool is limited to one connection: SQLite serializes writers anyway and
// a ":memory:" database only lives as long as its connection.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if isFile(dsn) {
		if _, err := filex.EnsureParentDir(strings.TrimPrefix(dsn, "file:")); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// isFile reports whether dsn names a database file rather than an in-memory
// database or a URI with parameters.
func isFile(dsn string) bool {
	return dsn != "" && !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, "?")
}
